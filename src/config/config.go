package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

var API_ENV = os.Getenv("API_ENV")

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// ServiceFeeRate is the fraction of the rental subtotal charged to the
// renter on top of the subtotal.
func ServiceFeeRate() float64 {
	return envFloat("SERVICE_FEE_RATE", 0.15)
}

// OwnerCommissionRate is the single configured commission rate; the owner
// net is always subtotal minus this cut.
func OwnerCommissionRate() float64 {
	return envFloat("OWNER_COMMISSION_RATE", 0.20)
}

// PayoutPolicy selects when owner transfers are issued: "manual" defers to
// an admin release, "auto" transfers as soon as the return is confirmed.
func PayoutPolicy() string {
	p := os.Getenv("PAYOUT_POLICY")
	if p == "" {
		return "manual"
	}
	return p
}

func SweepInterval() time.Duration {
	return envDuration("SWEEP_INTERVAL", 2*time.Minute)
}

func OutboxInterval() time.Duration {
	return envDuration("OUTBOX_INTERVAL", 5*time.Second)
}

func RateLimitRPS() float64 {
	return envFloat("RATE_LIMIT_RPS", 20)
}

func RateLimitBurst() int {
	v := os.Getenv("RATE_LIMIT_BURST")
	if v == "" {
		return 40
	}
	b, err := strconv.Atoi(v)
	if err != nil {
		return 40
	}
	return b
}
