// Package publish copies rendered videos to S3 when a bucket is configured.
package publish
