package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/me.jpg", want: "user/me.jpg"},
		{name: "simple prefix", prefix: "photos", key: "user/me.jpg", want: "photos/user/me.jpg"},
		{name: "prefix trailing slash", prefix: "photos/", key: "user/me.jpg", want: "photos/user/me.jpg"},
		{name: "prefix and key slashes", prefix: "/photos/", key: "/user/me.jpg", want: "photos/user/me.jpg"},
		{name: "empty key", prefix: "photos", key: "", want: "photos"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	put *s3.PutObjectInput
	n   int
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	data, _ := io.ReadAll(in.Body)
	f.n = len(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("img"))}, nil
}

func TestPutUsesPrefixAndEncryption(t *testing.T) {
	fake := &fakeS3{}
	s := &Store{client: fake, bucket: "coach-photos", region: "us-east-1", prefix: "inputs", kmsKeyID: "kms-1"}

	obj, err := s.Put(context.Background(), "user-1", "me.jpg", "image/jpeg", []byte("abcdef"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := aws.ToString(fake.put.Key); !strings.HasPrefix(got, "inputs/") || !strings.HasSuffix(got, "_me.jpg") {
		t.Fatalf("unexpected object key %q", got)
	}
	if fake.put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(fake.put.SSEKMSKeyId) != "kms-1" {
		t.Fatalf("expected kms encryption, got %v", fake.put.ServerSideEncryption)
	}
	if obj.Size != 6 || fake.n != 6 {
		t.Fatalf("expected size 6, got %d", obj.Size)
	}
	if !strings.HasPrefix(obj.URL, "https://coach-photos.s3.us-east-1.amazonaws.com/inputs/") {
		t.Fatalf("unexpected url %s", obj.URL)
	}
	if strings.HasPrefix(obj.Key, "inputs/") {
		t.Fatalf("storage key should not carry the bucket prefix: %s", obj.Key)
	}
}

func TestPutDefaultsToAES(t *testing.T) {
	fake := &fakeS3{}
	s := &Store{client: fake, bucket: "b"}
	if _, err := s.Put(context.Background(), "u", "x.png", "", []byte("\x89PNG\r\n\x1a\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if fake.put.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256, got %v", fake.put.ServerSideEncryption)
	}
	if aws.ToString(fake.put.ContentType) != "image/png" {
		t.Fatalf("expected sniffed content type, got %s", aws.ToString(fake.put.ContentType))
	}
}
