// Package metrics publishes ticket lifecycle metrics to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/aws"
)

// Metric names.
const (
	TicketsCreated          = "TicketsCreated"
	StatusTransitions       = "StatusTransitions"
	TimeToResolutionSeconds = "TimeToResolutionSeconds"

	DimensionToStatus = "ToStatus"
)

// PutMetricData accepts at most this many datums per call.
const maxDatumsPerCall = 1000

// Datum is one metric observation.
type Datum struct {
	Name       string
	Value      float64
	Unit       cwtypes.StandardUnit
	Dimensions map[string]string
	Timestamp  time.Time
}

// Count is a Count datum of 1.
func Count(name string, at time.Time, dims map[string]string) Datum {
	return Datum{Name: name, Value: 1, Unit: cwtypes.StandardUnitCount, Dimensions: dims, Timestamp: at}
}

// Seconds is a duration datum in seconds.
func Seconds(name string, d time.Duration, at time.Time) Datum {
	return Datum{Name: name, Value: d.Seconds(), Unit: cwtypes.StandardUnitSeconds, Timestamp: at}
}

// Recorder writes datums under one namespace.
type Recorder struct {
	client    aws.CloudWatchAPI
	namespace string
}

// NewRecorder creates a Recorder for namespace.
func NewRecorder(client aws.CloudWatchAPI, namespace string) *Recorder {
	return &Recorder{client: client, namespace: namespace}
}

// Record sends datums in as few PutMetricData calls as allowed.
func (r *Recorder) Record(ctx context.Context, datums ...Datum) error {
	for start := 0; start < len(datums); start += maxDatumsPerCall {
		end := min(start+maxDatumsPerCall, len(datums))

		data := make([]cwtypes.MetricDatum, 0, end-start)
		for _, d := range datums[start:end] {
			data = append(data, toMetricDatum(d))
		}

		_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  sdkaws.String(r.namespace),
			MetricData: data,
		})
		if err != nil {
			return fmt.Errorf("put metric data: %w", err)
		}
	}
	return nil
}

func toMetricDatum(d Datum) cwtypes.MetricDatum {
	md := cwtypes.MetricDatum{
		MetricName: sdkaws.String(d.Name),
		Value:      sdkaws.Float64(d.Value),
		Unit:       d.Unit,
	}
	if !d.Timestamp.IsZero() {
		md.Timestamp = sdkaws.Time(d.Timestamp)
	}
	for k, v := range d.Dimensions {
		md.Dimensions = append(md.Dimensions, cwtypes.Dimension{
			Name:  sdkaws.String(k),
			Value: sdkaws.String(v),
		})
	}
	return md
}
