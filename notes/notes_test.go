package notes_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tidepool-org/cardiac/notes"
)

var _ = Describe("Limit", func() {
	It("uses the default for non positive limits", func() {
		Expect(notes.Limit(0)).To(Equal(notes.DefaultLimit))
		Expect(notes.Limit(-3)).To(Equal(notes.DefaultLimit))
	})

	It("caps large limits", func() {
		Expect(notes.Limit(10)).To(Equal(10))
		Expect(notes.Limit(notes.MaxLimit + 1)).To(Equal(notes.MaxLimit))
	})
})
