package coherence_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cohsim/internal/coherence"
	"github.com/sarchlab/cohsim/internal/tagging"
)

var _ = Describe("a two-core race for the same block", func() {
	var (
		c0, c1 *coherence.Cache
		caches []*coherence.Cache
		bus    *coherence.Bus
	)

	BeforeEach(func() {
		c0, _ = coherence.NewCache(0, 0, 2, 2)
		c1, _ = coherence.NewCache(1, 0, 2, 2)
		caches = []*coherence.Cache{c0, c1}
		bus = coherence.NewBus(4)
	})

	tickUntilIdle := func(driven ...*coherence.Cache) {
		for i := 0; i < 1000; i++ {
			anyPending := false
			for _, c := range driven {
				if c.IsPending() {
					anyPending = true
				}
			}
			if !anyPending {
				return
			}

			Expect(bus.Tick(caches)).To(Succeed())
			for _, c := range driven {
				c.TickPending()
			}
		}

		Fail("caches never drained")
	}

	When("both cores read-miss the same block back to back", func() {
		It("leaves both holding Shared, never both Exclusive", func() {
			_, tx0 := c0.Read(0x40)
			bus.Enqueue(*tx0)
			_, tx1 := c1.Read(0x40)
			bus.Enqueue(*tx1)

			tickUntilIdle(c0, c1)

			s0, ok0 := c0.StateOf(0x40)
			s1, ok1 := c1.StateOf(0x40)
			Expect(ok0).To(BeTrue())
			Expect(ok1).To(BeTrue())

			// The first to be serviced goes to memory as Exclusive; snooping
			// the second miss must downgrade it to Shared before it installs
			// its own copy as Shared, never leaving two Exclusive copies.
			Expect([]tagging.State{s0, s1}).NotTo(ConsistOf(tagging.Exclusive, tagging.Exclusive))
		})
	})

	When("core 0 holds Modified and core 1 issues a write miss on the same block", func() {
		It("core 0 writes back exactly once and core 1 ends Modified", func() {
			_, tx0 := c0.Write(0x40)
			bus.Enqueue(*tx0)
			tickUntilIdle(c0)

			statsBefore := c0.Stats()

			_, tx1 := c1.Write(0x40)
			bus.Enqueue(*tx1)
			tickUntilIdle(c1)

			Expect(c0.Stats().Writebacks).To(Equal(statsBefore.Writebacks + 1))

			_, ok0 := c0.StateOf(0x40)
			Expect(ok0).To(BeFalse(), "c0's copy must be invalidated by the incoming BusRdWITWr")

			s1, ok1 := c1.StateOf(0x40)
			Expect(ok1).To(BeTrue())
			Expect(s1).To(Equal(tagging.Modified))
		})
	})

	When("a Shared line upgrades to Modified via BusUpgr", func() {
		It("the issuing core is never itself invalidated", func() {
			_, tx0 := c0.Read(0x40)
			bus.Enqueue(*tx0)
			tickUntilIdle(c0)

			_, tx1 := c1.Read(0x40)
			bus.Enqueue(*tx1)
			tickUntilIdle(c1)

			status, upgradeTx := c1.Write(0x40)
			Expect(status).To(Equal(coherence.Hit))
			Expect(upgradeTx.Type).To(Equal(coherence.BusUpgr))

			bus.Enqueue(*upgradeTx)
			Expect(bus.Tick(caches)).To(Succeed())

			s1, ok1 := c1.StateOf(0x40)
			Expect(ok1).To(BeTrue())
			Expect(s1).To(Equal(tagging.Modified))
		})
	})
})
