package sessions_test

import (
	"context"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	providerTest "github.com/tidepool-org/cardiac/provider/test"
	"github.com/tidepool-org/cardiac/sessions"
	"github.com/tidepool-org/cardiac/test"
)

var _ = Describe("Registry", func() {
	var server *providerTest.FitbitServer
	var registry *sessions.Registry

	BeforeEach(func() {
		server = providerTest.ServerStub()
		repo, _ := newMockRepository(gomock.NewController(GinkgoT()))

		var err error
		registry, err = sessions.NewRegistryWithClock(2, oauthConfig(server), repo, zap.NewNop().Sugar(), time.Now)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("shares the manager of a patient", func() {
		patientId := test.Faker.UUID().V4()
		Expect(registry.Manager(patientId)).To(BeIdenticalTo(registry.Manager(patientId)))
	})

	It("completes the authorization of the patient owning the state", func() {
		patientId := test.Faker.UUID().V4()
		consentUrl, err := registry.BeginAuthorization(context.Background(), patientId)
		Expect(err).ToNot(HaveOccurred())
		parsed, err := url.Parse(consentUrl)
		Expect(err).ToNot(HaveOccurred())

		resolved, err := registry.CompleteAuthorization(context.Background(), sessions.CallbackParams{
			State: parsed.Query().Get("state"),
			Code:  providerTest.AuthorizationCode,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resolved).To(Equal(patientId))

		state, err := registry.State(context.Background(), patientId)
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(sessions.StateAuthenticated))

		token, err := registry.GetValidToken(context.Background(), patientId)
		Expect(err).ToNot(HaveOccurred())
		Expect(token).ToNot(BeEmpty())
	})

	It("keeps a manager in use when it is evicted from the cache", func() {
		patientId := test.Faker.UUID().V4()
		server.SetExpiresIn(60)
		consentUrl, err := registry.BeginAuthorization(context.Background(), patientId)
		Expect(err).ToNot(HaveOccurred())
		parsed, err := url.Parse(consentUrl)
		Expect(err).ToNot(HaveOccurred())
		_, err = registry.CompleteAuthorization(context.Background(), sessions.CallbackParams{
			State: parsed.Query().Get("state"),
			Code:  providerTest.AuthorizationCode,
		})
		Expect(err).ToNot(HaveOccurred())
		server.SetExpiresIn(28800)

		manager := registry.Manager(patientId)
		started, release := server.HoldTokenRequests()
		defer release()

		tokens := make([]string, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			tokens[0], errs[0] = registry.GetValidToken(context.Background(), patientId)
		}()
		Eventually(started).Should(BeClosed())

		registry.Manager(test.Faker.UUID().V4())
		registry.Manager(test.Faker.UUID().V4())
		Expect(registry.Manager(patientId)).To(BeIdenticalTo(manager))

		second := make(chan struct{})
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			defer close(second)
			tokens[1], errs[1] = registry.GetValidToken(context.Background(), patientId)
		}()
		Consistently(second, "100ms").ShouldNot(BeClosed())

		release()
		wg.Wait()

		Expect(errs[0]).ToNot(HaveOccurred())
		Expect(errs[1]).ToNot(HaveOccurred())
		Expect(tokens[1]).To(Equal(tokens[0]))
		Expect(server.RefreshCount()).To(Equal(1))
	})

	It("rejects unknown states", func() {
		_, err := registry.CompleteAuthorization(context.Background(), sessions.CallbackParams{State: "unknown", Code: providerTest.AuthorizationCode})
		Expect(err).To(MatchError(sessions.ErrAuthExchange))
	})

	It("revokes through the manager", func() {
		patientId := test.Faker.UUID().V4()
		Expect(registry.Revoke(context.Background(), patientId)).To(Succeed())
		state, err := registry.State(context.Background(), patientId)
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(sessions.StateUnauthenticated))
	})
})
