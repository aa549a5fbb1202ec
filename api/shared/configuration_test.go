package shared_test

import (
	"database/sql"
	"os"

	. "github.com/MashSoftware/diary-api/api/shared"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Configuration", func() {

	Describe("IsolationLevel", func() {

		It("should default to serializable", func() {
			level, err := (&AppConfig{}).IsolationLevel()
			Expect(err).NotTo(HaveOccurred())
			Expect(level).To(Equal(sql.LevelSerializable))
		})

		It("should accept read committed in any spelling", func() {
			level, err := (&AppConfig{TxIsolation: "READ_COMMITTED"}).IsolationLevel()
			Expect(err).NotTo(HaveOccurred())
			Expect(level).To(Equal(sql.LevelReadCommitted))
		})

		It("should refuse repeatable read", func() {
			_, err := (&AppConfig{TxIsolation: "repeatable read"}).IsolationLevel()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("InitAppConfiguration", func() {

		AfterEach(func() {
			os.Unsetenv("DIARY_TX_ISOLATION")
		})

		It("should read the defaults", func() {
			config, err := InitAppConfiguration()
			Expect(err).NotTo(HaveOccurred())
			Expect(config.ListenAddress).To(Equal("0.0.0.0:8080"))
			Expect(config.BcryptCost).To(Equal(12))
		})

		It("should fail at startup on repeatable read", func() {
			os.Setenv("DIARY_TX_ISOLATION", "repeatable_read")
			_, err := InitAppConfiguration()
			Expect(err).To(MatchError(ContainSubstring("unsupported transaction isolation")))
		})
	})
})
