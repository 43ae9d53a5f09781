package lib

import (
	"context"
	"fmt"
	"log"
	"os"

	"rbs/src/config"
	"rbs/src/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func GetTopicArn(topic string) string {
	region := os.Getenv("AWS_REGION")
	memberId := os.Getenv("AWS_MEMBER_ID")
	return fmt.Sprintf("arn:aws:sns:%s:%s:%s", region, memberId, topic)
}

// OpsAlert notifies the operations topic about a condition that needs a
// human decision, such as a settlement integrity mismatch. Outside of test
// and production the alert only goes to the log.
func OpsAlert(subject string, message string) {
	log.Printf("[OpsAlert] %s: %s\n", subject, message)
	env := config.API_ENV
	if env != string(types.Production) && env != string(types.Test) {
		return
	}
	client := AWSGetSNSClient()
	if client == nil {
		return
	}
	topicArn := GetTopicArn(os.Getenv("OPS_ALERTS_TOPIC"))
	_, err := client.Publish(context.Background(), &sns.PublishInput{
		TopicArn: aws.String(topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		log.Printf("[OpsAlert] Error publishing to topic: %s\n", err.Error())
	}
}
