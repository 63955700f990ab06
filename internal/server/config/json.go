package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/hipnode/hipnode/internal/flagx"
	"github.com/hipnode/hipnode/internal/timex"
)

// JsonConfig is the intermediate DTO for JSON config files. Duration fields
// use timex.Duration so both "24h" strings and integer nanoseconds parse.
// Empty fields leave the current Config value untouched.
type JsonConfig struct {
	EndpointAddr              string          `json:"endpoint_addr"`
	DatabaseDSN               string          `json:"database_dsn"`
	SecretKey                 string          `json:"secret_key"`
	Domain                    string          `json:"domain"`
	SignInStatement           string          `json:"sign_in_statement"`
	Environment               string          `json:"environment"`
	SessionValidityDuration   *timex.Duration `json:"session_validity_duration"`
	ChallengeValidityDuration *timex.Duration `json:"challenge_validity_duration"`
	S3RootUser                string          `json:"s3_root_user"`
	S3RootPassword            string          `json:"s3_root_password"`
	S3Bucket                  string          `json:"s3_bucket"`
	S3Region                  string          `json:"s3_region"`
	S3BaseEndpoint            string          `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; when
// neither is set, no JSON file is loaded. An unreadable or invalid file
// panics, since the process cannot run on half-applied configuration.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setIfNotEmpty(&config.EndpointAddr, c.EndpointAddr)
	setIfNotEmpty(&config.DatabaseDSN, c.DatabaseDSN)
	setIfNotEmpty(&config.SecretKey, c.SecretKey)
	setIfNotEmpty(&config.Domain, c.Domain)
	setIfNotEmpty(&config.SignInStatement, c.SignInStatement)
	setIfNotEmpty(&config.Environment, c.Environment)
	if c.SessionValidityDuration != nil {
		config.SessionValidityDuration = time.Duration(c.SessionValidityDuration.Duration)
	}
	if c.ChallengeValidityDuration != nil {
		config.ChallengeValidityDuration = time.Duration(c.ChallengeValidityDuration.Duration)
	}
	setIfNotEmpty(&config.S3RootUser, c.S3RootUser)
	setIfNotEmpty(&config.S3RootPassword, c.S3RootPassword)
	setIfNotEmpty(&config.S3Bucket, c.S3Bucket)
	setIfNotEmpty(&config.S3Region, c.S3Region)
	setIfNotEmpty(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
