package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir  string
		homeDir string
		m       *dotdir.Manager
	)

	chdir := func(dir string) {
		orig, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(func() { _ = os.Chdir(orig) })
	}

	BeforeEach(func() {
		var err error
		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		homeDir = filepath.Join(tmpDir, "home")
		Expect(os.Mkdir(homeDir, 0o755)).To(Succeed())
		GinkgoT().Setenv("HOME", homeDir)
		GinkgoT().Setenv(dotdir.EnvHome, "")

		m = dotdir.NewManager()
	})

	Describe("Locate", func() {
		It("prefers the override", func() {
			GinkgoT().Setenv(dotdir.EnvHome, filepath.Join(tmpDir, "env"))

			loc, err := m.Locate(filepath.Join(tmpDir, "override"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loc).To(Equal(dotdir.Location{Dir: filepath.Join(tmpDir, "override"), Origin: dotdir.OriginFlag}))
		})

		It("uses STACKS_HOME over a project directory", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".stacks"), 0o755)).To(Succeed())
			chdir(tmpDir)
			GinkgoT().Setenv(dotdir.EnvHome, filepath.Join(tmpDir, "env"))

			loc, err := m.Locate("")
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Origin).To(Equal(dotdir.OriginEnv))
			Expect(loc.Dir).To(Equal(filepath.Join(tmpDir, "env")))
		})

		It("finds a .stacks dir in a parent directory", func() {
			project := filepath.Join(tmpDir, "project")
			nested := filepath.Join(project, "docs", "manuals")
			Expect(os.MkdirAll(nested, 0o755)).To(Succeed())
			Expect(os.Mkdir(filepath.Join(project, ".stacks"), 0o755)).To(Succeed())
			chdir(nested)

			loc, err := m.Locate("")
			Expect(err).NotTo(HaveOccurred())
			Expect(loc).To(Equal(dotdir.Location{Dir: filepath.Join(project, ".stacks"), Origin: dotdir.OriginProject}))
		})

		It("reports the home directory as home even when found by walking up", func() {
			Expect(os.Mkdir(filepath.Join(homeDir, ".stacks"), 0o755)).To(Succeed())
			nested := filepath.Join(homeDir, "notes")
			Expect(os.Mkdir(nested, 0o755)).To(Succeed())
			chdir(nested)

			loc, err := m.Locate("")
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Origin).To(Equal(dotdir.OriginHome))
		})

		It("does not create anything", func() {
			_, err := m.Locate(filepath.Join(tmpDir, "missing"))
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Join(tmpDir, "missing")).NotTo(BeADirectory())
		})
	})

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))
			Expect(dir).To(BeADirectory())
		})

		It("creates the home .stacks dir when nothing else applies", func() {
			empty := filepath.Join(homeDir, "empty")
			Expect(os.Mkdir(empty, 0o755)).To(Succeed())
			chdir(empty)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(homeDir, ".stacks")))
			Expect(result).To(BeADirectory())
		})
	})

	Describe("DefaultSQLitePath", func() {
		It("places the database inside the resolved directory", func() {
			path, err := m.DefaultSQLitePath(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(tmpDir, "stacks.sqlite")))
		})
	})
})
