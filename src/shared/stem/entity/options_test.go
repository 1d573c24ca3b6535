package stementity_test

import (
	stementity "github.com/everyinstrument/everyinstrument-be/src/shared/stem/entity"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Options", func() {
	var options stementity.Options

	BeforeEach(func() {
		options = stementity.Options{
			StemsMode:    stementity.InstrumentalMode,
			Quality:      stementity.BalancedQuality,
			OutputFormat: stementity.WAVFormat,
		}
	})

	Describe("Validate", func() {
		It("accepts every recognized combination", func() {
			modes := []stementity.StemsMode{stementity.InstrumentalMode, stementity.TwoStemsMode, stementity.FourStemsMode}
			qualities := []stementity.Quality{stementity.FastQuality, stementity.BalancedQuality, stementity.BestQuality}
			formats := []stementity.OutputFormat{stementity.WAVFormat, stementity.MP3Format, stementity.FLACFormat}

			for _, mode := range modes {
				for _, quality := range qualities {
					for _, format := range formats {
						options.StemsMode = mode
						options.Quality = quality
						options.OutputFormat = format
						Expect(options.Validate()).To(Succeed())
					}
				}
			}
		})

		It("rejects an unrecognized stems mode", func() {
			options.StemsMode = "five_stems"
			Expect(options.Validate()).NotTo(Succeed())
		})

		It("rejects an unrecognized quality tier", func() {
			options.Quality = "shiny"
			Expect(options.Validate()).NotTo(Succeed())
		})

		It("rejects an unrecognized output format", func() {
			options.OutputFormat = "ogg"
			Expect(options.Validate()).NotTo(Succeed())
		})

		It("rejects zero value options", func() {
			Expect(stementity.Options{}.Validate()).NotTo(Succeed())
		})
	})

	Describe("IsTwoStem", func() {
		It("treats instrumental and two stems modes as two stem runs", func() {
			options.StemsMode = stementity.InstrumentalMode
			Expect(options.IsTwoStem()).To(BeTrue())

			options.StemsMode = stementity.TwoStemsMode
			Expect(options.IsTwoStem()).To(BeTrue())
		})

		It("treats four stems mode as a full split", func() {
			options.StemsMode = stementity.FourStemsMode
			Expect(options.IsTwoStem()).To(BeFalse())
		})
	})

	Describe("CanonicalJSON", func() {
		It("is deterministic for equal options", func() {
			first, err := options.CanonicalJSON()
			Expect(err).NotTo(HaveOccurred())

			second, err := options.CanonicalJSON()
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
		})

		It("reflects every field", func() {
			serialized, err := options.CanonicalJSON()
			Expect(err).NotTo(HaveOccurred())

			Expect(string(serialized)).To(ContainSubstring("stems_mode"))
			Expect(string(serialized)).To(ContainSubstring("quality"))
			Expect(string(serialized)).To(ContainSubstring("output_format"))
			Expect(string(serialized)).To(ContainSubstring("use_gpu"))
			Expect(string(serialized)).To(ContainSubstring("residual_suppression"))
		})
	})
})

var _ = Describe("IsStemRole", func() {
	It("accepts every canonical role name", func() {
		for _, role := range []stementity.StemRole{
			stementity.VocalsRole,
			stementity.InstrumentalRole,
			stementity.DrumsRole,
			stementity.BassRole,
			stementity.OtherRole,
		} {
			Expect(stementity.IsStemRole(string(role))).To(BeTrue())
		}
	})

	It("rejects anything else", func() {
		Expect(stementity.IsStemRole("piano")).To(BeFalse())
		Expect(stementity.IsStemRole("*")).To(BeFalse())
		Expect(stementity.IsStemRole("")).To(BeFalse())
	})
})

var _ = Describe("RequiredRoles", func() {
	It("demands vocals and instrumental for two stem modes", func() {
		Expect(stementity.RequiredRoles(stementity.InstrumentalMode)).
			To(ConsistOf(stementity.VocalsRole, stementity.InstrumentalRole))
		Expect(stementity.RequiredRoles(stementity.TwoStemsMode)).
			To(ConsistOf(stementity.VocalsRole, stementity.InstrumentalRole))
	})

	It("demands the four instrument roles for a full split", func() {
		Expect(stementity.RequiredRoles(stementity.FourStemsMode)).
			To(ConsistOf(stementity.VocalsRole, stementity.DrumsRole, stementity.BassRole, stementity.OtherRole))
	})
})
