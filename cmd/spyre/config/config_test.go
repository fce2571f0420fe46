package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/spyre/cmd/spyre/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = os.Chdir(origDir) })

		// Create a local .spyre dir so the manager picks it up
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".spyre"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		GinkgoT().Setenv("HOME", filepath.Join(tmpDir, "home"))
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "llm.endpoint", "http://gpu-box:8000")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".spyre", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("http://gpu-box:8000"))
			Expect(out.String()).To(ContainSubstring("llm.endpoint"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).NotTo(Succeed())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "llm.endpoint")).NotTo(Succeed())
		})

		It("rejects zero arguments", func() {
			Expect(run("set")).NotTo(Succeed())
		})

		It("rejects invalid integer values", func() {
			Expect(run("set", "batch.qa_size", "not-a-number")).NotTo(Succeed())
		})

		It("rejects values that fail validation", func() {
			Expect(run("set", "llm.endpoint", "not a url")).NotTo(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, ".spyre", "config.toml"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("creates the home directory when none exists", func() {
			Expect(os.RemoveAll(filepath.Join(tmpDir, ".spyre"))).To(Succeed())

			Expect(run("set", "llm.model", "granite")).To(Succeed())
			Expect(filepath.Join(tmpDir, "home", ".spyre", "config.toml")).To(BeARegularFile())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "llm.model", "granite-3b")).To(Succeed())

			out.Reset()
			Expect(run("get", "llm.model")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("granite-3b"))
		})

		It("shows defaults for unset keys", func() {
			Expect(run("get", "batch.classify_size")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("128"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).NotTo(Succeed())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key when no config exists", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("llm.endpoint"))
			Expect(out.String()).To(ContainSubstring("query.stop_words"))
		})

		It("shows set values", func() {
			Expect(run("set", "server.listen", ":9000")).To(Succeed())

			out.Reset()
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`":9000"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).NotTo(Succeed())
		})
	})
})
