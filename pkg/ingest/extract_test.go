package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/ingest"
	testutils "github.com/papercomputeco/stacks/pkg/utils/test"
)

var _ = Describe("DocumentExtractor", func() {
	var (
		ctx       context.Context
		extractor *ingest.DocumentExtractor
		dir       string
	)

	BeforeEach(func() {
		ctx = context.Background()
		extractor = ingest.NewDocumentExtractor()
		dir = GinkgoT().TempDir()
	})

	It("extracts text from a PDF", func() {
		path := filepath.Join(dir, "cats.pdf")
		Expect(os.WriteFile(path, testutils.MinimalPDF("Cats purr when content."), 0o600)).To(Succeed())

		text, err := extractor.ExtractText(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("Cats purr when content."))
	})

	It("reads plain text files as-is", func() {
		path := filepath.Join(dir, "notes.txt")
		Expect(os.WriteFile(path, []byte("first\n\nsecond"), 0o600)).To(Succeed())

		text, err := extractor.ExtractText(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("first\n\nsecond"))
	})

	It("replaces invalid UTF-8", func() {
		text, err := extractor.ExtractBytes(ctx, []byte{'a', 0xff, 'b'}, ".txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("a�b"))
	})

	It("reports unreadable PDFs", func() {
		_, err := extractor.ExtractBytes(ctx, []byte("not a pdf"), ".pdf")
		Expect(errors.Is(err, ingest.ErrUnreadableDocument)).To(BeTrue())
	})

	It("reports missing files as unreadable", func() {
		_, err := extractor.ExtractText(ctx, filepath.Join(dir, "missing.pdf"))
		Expect(errors.Is(err, ingest.ErrUnreadableDocument)).To(BeTrue())
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})

	It("rejects unsupported formats", func() {
		_, err := extractor.ExtractBytes(ctx, []byte("x"), ".docx")
		Expect(errors.Is(err, ingest.ErrUnsupportedFormat)).To(BeTrue())
		Expect(extractor.Supports(".docx")).To(BeFalse())
		Expect(extractor.Supports(".PDF")).To(BeTrue())
	})
})
