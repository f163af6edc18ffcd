package utils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"streak-tracker/models"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestR2Archiver_ArchiveCleanupRun(t *testing.T) {
	putter := &fakePutter{}
	a := &R2Archiver{client: putter, bucket: "audit", prefix: "cleanup-runs"}
	run := &models.CleanupRun{
		ID:           "run-1",
		Trigger:      models.TriggerManual,
		StartedAt:    time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC),
		DeletedUsers: 2,
	}

	require.NoError(t, a.ArchiveCleanupRun(context.Background(), run))
	require.Len(t, putter.inputs, 1)
	assert.Equal(t, "audit", *putter.inputs[0].Bucket)
	assert.Equal(t, "cleanup-runs/2025/03/09/run-1.json", *putter.inputs[0].Key)
	assert.Equal(t, "application/json", *putter.inputs[0].ContentType)

	var got models.CleanupRun
	require.NoError(t, json.Unmarshal(putter.bodies[0], &got))
	assert.Equal(t, 2, got.DeletedUsers)
	assert.Equal(t, models.TriggerManual, got.Trigger)
}

func TestR2Archiver_UploadError(t *testing.T) {
	a := &R2Archiver{client: &fakePutter{err: errors.New("boom")}, bucket: "audit"}
	err := a.ArchiveCleanupRun(context.Background(), &models.CleanupRun{ID: "x"})
	assert.ErrorContains(t, err, "failed to upload to R2")
}

func TestR2Config_Enabled(t *testing.T) {
	assert.False(t, R2Config{}.Enabled())
	assert.True(t, R2Config{AccountID: "acc", AccessKeyID: "k", Bucket: "b"}.Enabled())
	assert.True(t, R2Config{Endpoint: "http://localhost:9000", AccessKeyID: "k", Bucket: "b"}.Enabled())
}
