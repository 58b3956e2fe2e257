package longpoll

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Subscribe Envelope", func() {
	When("the body is a normal subscribe response", func() {
		It("decodes messages and timetoken", func() {
			envelope, err := ParseEnvelope([]byte(`[["hello"],"14"]`))

			Expect(err).ShouldNot(HaveOccurred())
			Expect(envelope.Messages).To(HaveLen(1))
			Expect(string(envelope.Messages[0])).To(Equal(`"hello"`))
			Expect(envelope.Timetoken).To(Equal(int64(14)))
		})

		It("handles the idle poll with no messages", func() {
			envelope, err := ParseEnvelope([]byte(`[[],"13985346018558534"]`))

			Expect(err).ShouldNot(HaveOccurred())
			Expect(envelope.Messages).To(BeEmpty())
			Expect(envelope.Timetoken).To(Equal(int64(13985346018558534)))
		})

		It("keeps message payloads opaque", func() {
			envelope, err := ParseEnvelope([]byte(`[[{"temp":21.5},"plain",42,[1,2]],"99"]`))

			Expect(err).ShouldNot(HaveOccurred())
			Expect(envelope.Messages).To(HaveLen(4))
			Expect(string(envelope.Messages[0])).To(Equal(`{"temp":21.5}`))
			Expect(string(envelope.Messages[2])).To(Equal(`42`))
		})

		It("accepts a numeric timetoken from older peers", func() {
			envelope, err := ParseEnvelope([]byte(`[["x"],13985346018558534]`))

			Expect(err).ShouldNot(HaveOccurred())
			Expect(envelope.Timetoken).To(Equal(int64(13985346018558534)))
		})

		It("ignores trailing envelope elements", func() {
			envelope, err := ParseEnvelope([]byte(`[["x"],"5","alerts"]`))

			Expect(err).ShouldNot(HaveOccurred())
			Expect(envelope.Timetoken).To(Equal(int64(5)))
		})
	})

	When("the body is not a subscribe response", func() {
		expectEnvelopeError := func(body string) {
			_, err := ParseEnvelope([]byte(body))

			var envelopeErr *EnvelopeError
			Expect(errors.As(err, &envelopeErr)).To(BeTrue(), "expected an envelope error for %s, got %v", body, err)
		}

		It("rejects non-JSON bodies", func() {
			expectEnvelopeError(`<html>502 Bad Gateway</html>`)
		})

		It("rejects a JSON object", func() {
			expectEnvelopeError(`{"error":"forbidden"}`)
		})

		It("rejects a one-element array", func() {
			expectEnvelopeError(`[["hello"]]`)
		})

		It("rejects a messages element that is not an array", func() {
			expectEnvelopeError(`["hello","14"]`)
		})

		It("rejects a non-numeric timetoken string", func() {
			expectEnvelopeError(`[["hello"],"not-a-number"]`)
		})

		It("rejects a timetoken of the wrong type", func() {
			expectEnvelopeError(`[["hello"],true]`)
		})
	})
})
