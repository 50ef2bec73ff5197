package deletions_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/tidepool-org/cardiac/deletions"
	dbTest "github.com/tidepool-org/cardiac/store/test"
	"github.com/tidepool-org/cardiac/test"
)

type record struct {
	Key   string `bson:"key"`
	Value int    `bson:"value"`
}

var _ = Describe("Deletions Repository", func() {
	var repo deletions.Repository[record]
	var key string

	BeforeEach(func() {
		repo = deletions.NewRepository[record]("record", []string{"key"}, dbTest.GetTestDatabase(), zap.NewNop().Sugar())
		Expect(repo.Initialize(context.Background())).To(Succeed())
		key = test.Faker.UUID().V4()
	})

	It("archives deleted records with their metadata", func() {
		Expect(repo.Create(context.Background(), record{Key: key, Value: 1}, deletions.Metadata{DeletedBy: "clinician", Reason: "transferred"})).To(Succeed())

		list, err := repo.List(context.Background(), bson.M{"key": key})
		Expect(err).ToNot(HaveOccurred())
		Expect(list).To(HaveLen(1))
		Expect(list[0].Document).To(Equal(record{Key: key, Value: 1}))
		Expect(list[0].DeletedBy).To(Equal("clinician"))
		Expect(list[0].Reason).To(Equal("transferred"))
		Expect(list[0].DeletedTime).ToNot(BeZero())
	})

	It("keeps every deletion of the same record", func() {
		Expect(repo.Create(context.Background(), record{Key: key, Value: 1}, deletions.Metadata{})).To(Succeed())
		Expect(repo.Create(context.Background(), record{Key: key, Value: 2}, deletions.Metadata{})).To(Succeed())

		list, err := repo.List(context.Background(), bson.M{"key": key})
		Expect(err).ToNot(HaveOccurred())
		Expect(list).To(HaveLen(2))
	})

	It("returns an empty list when nothing was archived", func() {
		list, err := repo.List(context.Background(), bson.M{"key": key})
		Expect(err).ToNot(HaveOccurred())
		Expect(list).To(BeEmpty())
	})
})
