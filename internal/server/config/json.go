package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mpetrovs/cloudvault/internal/flagx"
)

// JsonConfig is the DTO for the optional JSON configuration file. Durations
// are strings in time.ParseDuration format ("15m", "10s"). Only fields
// present in the file override the running configuration.
type JsonConfig struct {
	EndpointAddr       string `json:"endpoint_addr"`
	DatabaseDSN        string `json:"database_dsn"`
	SecretKey          string `json:"secret_key"`
	S3AccessKey        string `json:"s3_access_key"`
	S3SecretKey        string `json:"s3_secret_key"`
	S3Bucket           string `json:"s3_bucket"`
	S3Region           string `json:"s3_region"`
	S3BaseEndpoint     string `json:"s3_base_endpoint"`
	MaxUploadSize      int64  `json:"max_upload_size"`
	DirectUploadLimit  int64  `json:"direct_upload_limit"`
	ChunkSize          int64  `json:"chunk_size"`
	PresignTTL         string `json:"presign_ttl"`
	ExternalTimeout    string `json:"external_timeout"`
	PresignConcurrency int    `json:"presign_concurrency"`
	Env                string `json:"env"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config flags; if neither
// is set, no file is loaded. An unreadable or invalid file panics: the server
// must not start on a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.Env, c.Env)

	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	if c.DirectUploadLimit > 0 {
		config.DirectUploadLimit = c.DirectUploadLimit
	}
	if c.ChunkSize > 0 {
		config.ChunkSize = c.ChunkSize
	}
	if c.PresignConcurrency > 0 {
		config.PresignConcurrency = c.PresignConcurrency
	}
	setDuration(&config.PresignTTL, c.PresignTTL)
	setDuration(&config.ExternalTimeout, c.ExternalTimeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
