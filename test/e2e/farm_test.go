package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Farm simulator", Ordered, func() {
	var (
		workDir     string
		configPath  string
		logPath     string
		metricsPath string
	)

	BeforeAll(func() {
		workDir = GinkgoT().TempDir()
		configPath = filepath.Join(workDir, "farm.yaml")
		logPath = filepath.Join(workDir, "cycles.log")
		metricsPath = filepath.Join(workDir, "metrics.prom")

		By("writing a configuration file")
		conf := strings.Join([]string{
			"initialWorkers: 3",
			"requestsPerWorker: 20",
			"cycles: 500",
			"seed: 42",
			"arrivalProbability: 0",
			"logFile: " + logPath,
			"blockedOrigins:",
			"  - 10.0.0.1",
			"",
		}, "\n")
		Expect(os.WriteFile(configPath, []byte(conf), 0o600)).To(Succeed())
	})

	It("should run to completion and print the final report", func() {
		out, err := run(exec.Command(simulatorBinary,
			"--config", configPath,
			"--metrics-file", metricsPath,
			"--max-workers", "8"))
		Expect(err).NotTo(HaveOccurred())

		Expect(out).To(ContainSubstring("=== Simulation Complete ==="))
		Expect(out).To(ContainSubstring("- Cycles simulated: 500"))
		Expect(out).To(ContainSubstring("Server 1 (192.168.1.1)"))
		Expect(out).To(ContainSubstring("Log file saved as: " + logPath))
	})

	It("should write the cycle log with the configured header", func() {
		data, err := os.ReadFile(logPath)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		Expect(lines[0]).To(Equal("Server Farm Simulation Log"))
		Expect(lines[1]).To(Equal("Servers: 3, Cycles: 500"))
		// header lines plus cycles 100 through 500
		Expect(lines).To(HaveLen(4 + 5))
		Expect(lines[len(lines)-1]).To(HavePrefix("Cycle   500 | "))
	})

	It("should export farm metrics in text format", func() {
		data, err := os.ReadFile(metricsPath)
		Expect(err).NotTo(HaveOccurred())
		text := string(data)
		Expect(text).To(ContainSubstring("farm_admission_requests_admitted_total 60"))
		Expect(text).To(ContainSubstring("farm_dispatcher_cycles_total 500"))
		Expect(text).To(ContainSubstring("farm_pool_workers"))
	})

	It("should reject an invalid configuration", func() {
		_, err := run(exec.Command(simulatorBinary,
			"--config", configPath,
			"--threshold", "1.5",
			"--log-file", filepath.Join(workDir, "invalid.log")))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("invalid configuration"))
	})
})
