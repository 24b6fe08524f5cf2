package config

import "os"

// MinioConfig points at the bucket holding uploaded event images.  An empty
// Endpoint disables uploads.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func LoadMinioConfig() MinioConfig {
	return MinioConfig{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    envStr("MINIO_BUCKET", "conference-images"),
		UseSSL:    envBool("MINIO_USE_SSL", false),
	}
}
