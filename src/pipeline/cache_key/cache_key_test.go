package cache_key_test

import (
	"github.com/everyinstrument/everyinstrument-be/src/pipeline/cache_key"
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Derive", func() {
	var (
		fileBytes []byte
		options   stementity.Options
	)

	BeforeEach(func() {
		fileBytes = []byte("cool_jamz")
		options = stementity.Options{
			StemsMode:    stementity.TwoStemsMode,
			Quality:      stementity.BalancedQuality,
			OutputFormat: stementity.WAVFormat,
		}
	})

	It("produces a 64 char lowercase hex key", func() {
		key, err := cache_key.Derive(fileBytes, options)
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(MatchRegexp("^[0-9a-f]{64}$"))
	})

	It("produces the same key for the same input and options", func() {
		first, err := cache_key.Derive(fileBytes, options)
		Expect(err).NotTo(HaveOccurred())

		second, err := cache_key.Derive([]byte("cool_jamz"), options)
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
	})

	It("produces a different key when the file contents change", func() {
		first, err := cache_key.Derive(fileBytes, options)
		Expect(err).NotTo(HaveOccurred())

		second, err := cache_key.Derive([]byte("cool_jamz2"), options)
		Expect(err).NotTo(HaveOccurred())

		Expect(second).NotTo(Equal(first))
	})

	It("produces a different key when any option changes", func() {
		baseline, err := cache_key.Derive(fileBytes, options)
		Expect(err).NotTo(HaveOccurred())

		variations := []stementity.Options{}

		variation := options
		variation.StemsMode = stementity.FourStemsMode
		variations = append(variations, variation)

		variation = options
		variation.Quality = stementity.BestQuality
		variations = append(variations, variation)

		variation = options
		variation.OutputFormat = stementity.MP3Format
		variations = append(variations, variation)

		variation = options
		variation.UseGPU = true
		variations = append(variations, variation)

		variation = options
		variation.ResidualSuppression = true
		variations = append(variations, variation)

		seen := map[string]bool{baseline: true}
		for _, variedOptions := range variations {
			key, err := cache_key.Derive(fileBytes, variedOptions)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen[key]).To(BeFalse(), "option variation collided with another key")
			seen[key] = true
		}
	})

	It("does not depend on anything besides bytes and options", func() {
		// a re-upload of the same track under a different name must hit
		// the same cache entry
		first, err := cache_key.Derive(fileBytes, options)
		Expect(err).NotTo(HaveOccurred())

		second, err := cache_key.Derive(fileBytes, options)
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
	})
})
