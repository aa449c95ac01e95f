package playbook_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/playbook/pkg/playbook"
)

var _ = Describe("Kind", func() {
	It("accepts every declared kind", func() {
		for _, k := range playbook.Kinds {
			Expect(k.Valid()).To(BeTrue())
		}
	})

	It("rejects unknown kinds", func() {
		Expect(playbook.Kind("wisdom").Valid()).To(BeFalse())
		Expect(playbook.Kind("").Valid()).To(BeFalse())
	})
})

var _ = Describe("NewBulletID", func() {
	It("produces lexicographically increasing ids over time", func() {
		first := playbook.NewBulletID()
		time.Sleep(2 * time.Millisecond)
		second := playbook.NewBulletID()

		Expect(second).NotTo(BeEmpty())
		Expect(first < second).To(BeTrue())
	})

	It("produces unique ids", func() {
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			id := playbook.NewBulletID()
			Expect(seen[id]).To(BeFalse())
			seen[id] = true
		}
	})
})

var _ = Describe("Bullet", func() {
	Describe("Utility", func() {
		It("returns the neutral midpoint when untouched", func() {
			b := &playbook.Bullet{}
			Expect(b.Utility()).To(Equal(0.5))
		})

		It("approaches 1 for purely helpful bullets", func() {
			b := &playbook.Bullet{HelpfulCount: 10}
			Expect(b.Utility()).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("approaches 0 for purely harmful bullets", func() {
			b := &playbook.Bullet{HarmfulCount: 7}
			Expect(b.Utility()).To(BeNumerically("~", 0.0, 1e-6))
		})

		It("returns the helpful fraction for mixed counters", func() {
			b := &playbook.Bullet{HelpfulCount: 3, HarmfulCount: 1}
			Expect(b.Utility()).To(BeNumerically("~", 0.75, 1e-6))
		})
	})

	Describe("Touched", func() {
		It("falls back to CreatedAt before any touch", func() {
			created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			b := &playbook.Bullet{CreatedAt: created}
			Expect(b.Touched()).To(Equal(created))
		})

		It("prefers LastTouchedAt once set", func() {
			created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			touched := created.Add(48 * time.Hour)
			b := &playbook.Bullet{CreatedAt: created, LastTouchedAt: touched}
			Expect(b.Touched()).To(Equal(touched))
		})
	})
})

var _ = Describe("Delta", func() {
	It("reports empty when it carries nothing", func() {
		d := &playbook.Delta{}
		Expect(d.Empty()).To(BeTrue())
	})

	It("is non-empty with an addition", func() {
		d := &playbook.Delta{
			Additions: []playbook.Addition{{Kind: playbook.KindStrategy, Body: "x"}},
		}
		Expect(d.Empty()).To(BeFalse())
	})

	It("is non-empty with an edit", func() {
		d := &playbook.Delta{
			Edits: []playbook.Edit{{BulletID: "b1", Op: playbook.OpIncHelpful}},
		}
		Expect(d.Empty()).To(BeFalse())
	})
})
