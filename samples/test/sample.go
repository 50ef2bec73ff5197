package test

import (
	"time"

	"github.com/tidepool-org/cardiac/pointer"
	"github.com/tidepool-org/cardiac/samples"
	"github.com/tidepool-org/cardiac/test"
)

func RandomHeartRateSample(patientId string, timestamp time.Time) samples.Sample {
	return samples.Sample{
		PatientId:   patientId,
		Timestamp:   timestamp.UTC().Truncate(time.Second),
		Source:      "fitbit",
		Kind:        samples.KindHeartRate,
		DeviceType:  "fitbit",
		HeartRate:   pointer.FromAny(float64(test.Faker.IntBetween(50, 120))),
		DataQuality: pointer.FromAny(1.0),
	}
}
