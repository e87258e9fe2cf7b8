package queue

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	inputs []*sqs.SendMessageInput
}

func (f *fakeSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSendStandardQueue(t *testing.T) {
	fake := &fakeSender{}
	c := &SQSClient{client: fake, queueURL: "https://sqs.us-east-1.amazonaws.com/1/coach-sync"}
	if err := c.Send(context.Background(), Message{EventID: "e1", UserID: "u1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.inputs) != 1 || fake.inputs[0].MessageGroupId != nil {
		t.Fatalf("unexpected input: %+v", fake.inputs)
	}
}

func TestSendFIFOQueueSetsGroup(t *testing.T) {
	fake := &fakeSender{}
	c := &SQSClient{client: fake, queueURL: "https://sqs.us-east-1.amazonaws.com/1/coach-sync.fifo"}
	if err := c.Send(context.Background(), Message{EventID: "e1", UserID: "u1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	in := fake.inputs[0]
	if aws.ToString(in.MessageGroupId) != "u1" || aws.ToString(in.MessageDeduplicationId) != "e1" {
		t.Fatalf("unexpected fifo attributes: %+v", in)
	}
}
