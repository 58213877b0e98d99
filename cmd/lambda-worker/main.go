package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"library-backend/internal/bootstrap"
	"library-backend/internal/shared/config"
	"library-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		if err := workerproc.HandleMessage(ctx, app.Processor, record.Body); err != nil {
			// Malformed payloads never become processable; retrying them
			// just cycles the message back. Only processing faults are
			// reported for redelivery.
			switch err.(type) {
			case workerproc.ErrEmptyBody, workerproc.ErrDecode, workerproc.ErrMissingFileID:
				log.Printf("dropping unrecoverable message %s: %v", record.MessageId, err)
				continue
			}
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}
