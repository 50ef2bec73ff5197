package test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tidepool-org/cardiac/store"
	"github.com/tidepool-org/cardiac/test"
)

const (
	defaultMongoTestHost = "mongodb://127.0.0.1:27017/?replicaSet=rs0&directConnection=true"
	mongoTimeout         = time.Second * 5
)

var (
	database *mongo.Database
)

func mongoTestHost() string {
	if host := os.Getenv("CARDIAC_TEST_MONGO_URI"); host != "" {
		return host
	}
	return defaultMongoTestHost
}

func SetupDatabase() {
	client, err := store.NewClient(mongoTestHost())
	Expect(err).ToNot(HaveOccurred())

	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	Expect(client.Ping(ctx, nil)).To(Succeed())

	databaseName := fmt.Sprintf("cardiac_test_%s_%d", test.Faker.Lorem().Word(), ginkgo.GinkgoParallelProcess())
	database = client.Database(databaseName)
}

func TeardownDatabase() {
	Expect(database).ToNot(BeNil())
	Expect(database.Drop(context.Background())).To(Succeed())

	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	Expect(database.Client().Disconnect(ctx)).To(Succeed())
	database = nil
}

func GetTestDatabase() *mongo.Database {
	Expect(database).ToNot(BeNil())
	return database
}
