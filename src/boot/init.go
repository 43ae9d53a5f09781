package boot

import (
	"context"
	"log"
	"os"

	"rbs/src/common"
	"rbs/src/config"
	"rbs/src/db"
	"rbs/src/lib"
	awslib "rbs/src/lib/aws"
	"rbs/src/models"
	"rbs/src/types"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Booking{},
		&models.LedgerEntry{},
		&models.WebhookEvent{},
		&models.OutboxEvent{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler starts the two background loops: the expiration sweep over
// pending bookings and the outbox dispatcher.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	_, err = sched.NewJob(
		gocron.DurationJob(config.SweepInterval()),
		gocron.NewTask(func() {
			if _, err := common.ExpireDueBookings(context.Background()); err != nil {
				log.Printf("[sweep] Error expiring bookings: %s\n", err.Error())
			}
		}),
	)
	if err != nil {
		log.Printf("Error scheduling sweep job: %s\n", err.Error())
		return
	}
	_, err = sched.NewJob(
		gocron.DurationJob(config.OutboxInterval()),
		gocron.NewTask(common.DispatchOutbox),
	)
	if err != nil {
		log.Printf("Error scheduling outbox job: %s\n", err.Error())
		return
	}
	log.Println("Jobs in queue:", len(sched.Jobs()))
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

// InitBroker wires the payout release command stream: SQS in the deployed
// environments, kafka locally.
func InitBroker() {
	env := config.API_ENV
	if env == string(types.Test) || env == string(types.Production) {
		queue := os.Getenv("PAYOUT_COMMANDS_QUEUE")
		consumer := awslib.NewSQSConsumer(queue, common.HandlePayoutCommand)
		consumer.Listen()
		return
	}
	lib.KafkaConsumer("rbsPayouts", []string{"payout-commands"}, common.HandlePayoutCommand)
}
