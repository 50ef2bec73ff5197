package test

import (
	"math/rand"
	"time"

	"github.com/jaswdr/faker"
	"github.com/onsi/ginkgo/v2"
)

var (
	Source = rand.NewSource(ginkgo.GinkgoRandomSeed())
	Faker  = faker.NewWithSeed(Source)
	Rand   = rand.New(Source)
)

// RandomFloat returns a random value in [min, max)
func RandomFloat(min, max float64) float64 {
	return min + Rand.Float64()*(max-min)
}

// RandomTimeInDay returns a random UTC time on the day of t
func RandomTimeInDay(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(Rand.Int63n(int64(24 * time.Hour))).Truncate(time.Second))
}
