package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/voyage-admin-api/pkg/config"
)

func TestDSNQuotesSpecialValues(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.supabase.co",
		Port:     6543,
		User:     "postgres.project",
		Password: "it's a secret",
		Name:     "postgres",
		SSLMode:  "require",
	})

	assert.Contains(t, dsn, "host=db.supabase.co")
	assert.Contains(t, dsn, "port=6543")
	assert.Contains(t, dsn, `password='it\'s a secret'`)
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "application_name=voyage-admin-api")
}

func TestDSNQuotesEmptyPassword(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "voyage", SSLMode: "disable"})
	assert.Contains(t, dsn, "password=''")
}
