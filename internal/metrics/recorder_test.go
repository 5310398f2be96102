package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (r *recordingCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	r.inputs = append(r.inputs, params)
	if r.err != nil {
		return nil, r.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestRecorder_Record(t *testing.T) {
	cw := &recordingCloudWatch{}
	rec := NewRecorder(cw, "Helpdesk")
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := rec.Record(context.Background(),
		Count(StatusTransitions, at, map[string]string{DimensionToStatus: "RESOLVED"}),
		Seconds(TimeToResolutionSeconds, 90*time.Minute, at),
	)
	require.NoError(t, err)
	require.Len(t, cw.inputs, 1)

	in := cw.inputs[0]
	assert.Equal(t, "Helpdesk", sdkaws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 2)

	transitions := in.MetricData[0]
	assert.Equal(t, StatusTransitions, sdkaws.ToString(transitions.MetricName))
	assert.Equal(t, 1.0, sdkaws.ToFloat64(transitions.Value))
	assert.Equal(t, cwtypes.StandardUnitCount, transitions.Unit)
	require.Len(t, transitions.Dimensions, 1)
	assert.Equal(t, DimensionToStatus, sdkaws.ToString(transitions.Dimensions[0].Name))
	assert.Equal(t, "RESOLVED", sdkaws.ToString(transitions.Dimensions[0].Value))
	assert.Equal(t, at, sdkaws.ToTime(transitions.Timestamp))

	resolution := in.MetricData[1]
	assert.Equal(t, 5400.0, sdkaws.ToFloat64(resolution.Value))
	assert.Equal(t, cwtypes.StandardUnitSeconds, resolution.Unit)
	assert.Empty(t, resolution.Dimensions)
}

func TestRecorder_Batches(t *testing.T) {
	cw := &recordingCloudWatch{}
	rec := NewRecorder(cw, "Helpdesk")

	datums := make([]Datum, maxDatumsPerCall+1)
	for i := range datums {
		datums[i] = Count(TicketsCreated, time.Time{}, nil)
	}
	require.NoError(t, rec.Record(context.Background(), datums...))
	require.Len(t, cw.inputs, 2)
	assert.Len(t, cw.inputs[0].MetricData, maxDatumsPerCall)
	assert.Len(t, cw.inputs[1].MetricData, 1)
	assert.Nil(t, cw.inputs[1].MetricData[0].Timestamp)
}

func TestRecorder_NothingToSend(t *testing.T) {
	cw := &recordingCloudWatch{}
	require.NoError(t, NewRecorder(cw, "Helpdesk").Record(context.Background()))
	assert.Empty(t, cw.inputs)
}

func TestRecorder_Error(t *testing.T) {
	cw := &recordingCloudWatch{err: errors.New("throttled")}
	err := NewRecorder(cw, "Helpdesk").Record(context.Background(), Count(TicketsCreated, time.Now(), nil))
	require.Error(t, err)
	assert.ErrorContains(t, err, "put metric data")
}
