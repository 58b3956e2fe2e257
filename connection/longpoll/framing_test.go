package longpoll

import (
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Response Framing", func() {
	Context("Reading headers", func() {
		When("the response is well formed", func() {
			It("extracts the status line and body length", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: 16\r\nConnection: keep-alive\r\n\r\nbody")

				header, err := ReadHeader(r)

				Expect(err).ShouldNot(HaveOccurred())
				Expect(header.StatusLine).To(Equal("HTTP/1.1 200 OK"))
				Expect(header.ContentLength).To(Equal(16))
			})

			It("stops exactly at the first body byte", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\nbodyNEXT")

				_, err := ReadHeader(r)
				Expect(err).ShouldNot(HaveOccurred())

				body, err := ReadBody(r, 4)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(string(body)).To(Equal("body"))

				// the keep-alive socket must still hold the next response
				rest := make([]byte, 4)
				r.Read(rest)
				Expect(string(rest)).To(Equal("NEXT"))
			})

			It("frames two back-to-back responses on one stream", func() {
				r := strings.NewReader(
					"HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\none" +
						"HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\ntwo")

				for _, want := range []string{"one", "two"} {
					header, err := ReadHeader(r)
					Expect(err).ShouldNot(HaveOccurred())
					Expect(header.ContentLength).To(Equal(3))

					body, err := ReadBody(r, header.ContentLength)
					Expect(err).ShouldNot(HaveOccurred())
					Expect(string(body)).To(Equal(want))
				}
			})

			It("extracts the same length however the peer chunks the bytes", func() {
				raw := "HTTP/1.1 200 OK\r\nContent-Length: 42\r\n\r\n"

				wholeChunk, err := ReadHeader(strings.NewReader(raw))
				Expect(err).ShouldNot(HaveOccurred())

				byteAtATime, err := ReadHeader(iotest.OneByteReader(strings.NewReader(raw)))
				Expect(err).ShouldNot(HaveOccurred())

				halvedChunks, err := ReadHeader(iotest.HalfReader(strings.NewReader(raw)))
				Expect(err).ShouldNot(HaveOccurred())

				Expect(byteAtATime.ContentLength).To(Equal(wholeChunk.ContentLength))
				Expect(halvedChunks.ContentLength).To(Equal(wholeChunk.ContentLength))
				Expect(wholeChunk.ContentLength).To(Equal(42))
			})
		})

		When("the header field varies in shape", func() {
			It("matches Content-Length case-insensitively", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\ncontent-length: 7\r\n\r\n")

				header, err := ReadHeader(r)

				Expect(err).ShouldNot(HaveOccurred())
				Expect(header.ContentLength).To(Equal(7))
			})

			It("tolerates missing whitespace after the colon", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length:7\r\n\r\n")

				header, err := ReadHeader(r)

				Expect(err).ShouldNot(HaveOccurred())
				Expect(header.ContentLength).To(Equal(7))
			})
		})

		When("the response is broken", func() {
			It("rejects a header with no Content-Length", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nConnection: keep-alive\r\n\r\n")

				_, err := ReadHeader(r)

				var framingErr *FramingError
				Expect(errors.As(err, &framingErr)).To(BeTrue())
			})

			It("rejects an unparseable Content-Length", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: banana\r\n\r\n")

				_, err := ReadHeader(r)

				var framingErr *FramingError
				Expect(errors.As(err, &framingErr)).To(BeTrue())
			})

			It("rejects a negative Content-Length", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: -5\r\n\r\n")

				_, err := ReadHeader(r)

				var framingErr *FramingError
				Expect(errors.As(err, &framingErr)).To(BeTrue())
			})

			It("rejects a Content-Length past the body budget", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: 4611686018427387904\r\n\r\n")

				_, err := ReadHeader(r)

				var framingErr *FramingError
				Expect(errors.As(err, &framingErr)).To(BeTrue())
			})

			It("accepts a Content-Length at the body budget", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: 4194304\r\n\r\n")

				header, err := ReadHeader(r)

				Expect(err).ShouldNot(HaveOccurred())
				Expect(header.ContentLength).To(Equal(4 * 1024 * 1024))
			})

			It("rejects a stream that ends mid-header", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\nContent-")

				_, err := ReadHeader(r)

				var framingErr *FramingError
				Expect(errors.As(err, &framingErr)).To(BeTrue())
			})

			It("gives up on an endless header block", func() {
				r := strings.NewReader("HTTP/1.1 200 OK\r\n" + strings.Repeat("X-Junk: junk\r\n", 1024))

				_, err := ReadHeader(r)

				var framingErr *FramingError
				Expect(errors.As(err, &framingErr)).To(BeTrue())
			})
		})
	})

	Context("Reading bodies", func() {
		When("the peer dribbles the body out", func() {
			It("collects every byte regardless of chunking", func() {
				for name, r := range map[string]io.Reader{
					"single chunk":    strings.NewReader("hello world!"),
					"byte at a time":  iotest.OneByteReader(strings.NewReader("hello world!")),
					"shrinking reads": iotest.HalfReader(strings.NewReader("hello world!")),
				} {
					body, err := ReadBody(r, 12)

					Expect(err).ShouldNot(HaveOccurred(), "%s delivery failed", name)
					Expect(string(body)).To(Equal("hello world!"), "%s delivery returned different bytes", name)
				}
			})
		})

		When("the peer closes early", func() {
			It("reports a framing failure", func() {
				r := strings.NewReader("hel")

				_, err := ReadBody(r, 12)

				var framingErr *FramingError
				Expect(errors.As(err, &framingErr)).To(BeTrue())
			})
		})

		When("the body is empty", func() {
			It("returns zero bytes without touching the reader", func() {
				r := strings.NewReader("NEXT")

				body, err := ReadBody(r, 0)

				Expect(err).ShouldNot(HaveOccurred())
				Expect(body).To(BeEmpty())
				Expect(r.Len()).To(Equal(4))
			})
		})
	})
})
