package dispatcher

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/llm-d-farm-simulator/internal/engines/scaling"
	"github.com/llm-d/llm-d-farm-simulator/internal/logging"
	"github.com/llm-d/llm-d-farm-simulator/internal/request"
)

func makeRequest(id, cost int) *request.Request {
	return request.New(id, "10.1.1.1", request.CategoryGet, 5, cost, time.Time{})
}

func submitN(d *Dispatcher, n, cost int) {
	for i := 1; i <= n; i++ {
		Expect(d.Submit(makeRequest(i, cost))).To(Succeed())
	}
}

func loads(d *Dispatcher) []int {
	out := make([]int, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, w.Load())
	}
	return out
}

func resident(d *Dispatcher) int {
	n := 0
	for _, w := range d.workers {
		n += w.Load()
	}
	return n
}

var _ = Describe("Dispatcher", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = logging.NewTestLoggerIntoContext(context.Background())
	})

	Context("construction", func() {
		It("should build the default pool", func() {
			d, err := NewDefaultDispatcher()
			Expect(err).NotTo(HaveOccurred())
			Expect(d.PoolSize()).To(Equal(1))
			Expect(d.ActiveWorkerCount()).To(Equal(1))
			Expect(d.maxWorkers).To(Equal(DefaultMaxWorkers))
			Expect(d.minWorkers).To(Equal(DefaultMinWorkers))
			Expect(d.scaleThreshold).To(Equal(DefaultScaleThreshold))
			Expect(d.ServerStats()).To(Equal([]string{
				"Server 1 (192.168.1.1): Load: 0/5 (0.0%) | Processed: 0 | Active: Yes",
			}))
		})

		DescribeTable("should reject inconsistent parameters",
			func(initial, maxWorkers, minWorkers int, threshold float64) {
				_, err := NewDispatcher(initial, maxWorkers, minWorkers, threshold)
				Expect(err).To(HaveOccurred())
			},
			Entry("minimum below one", 1, 4, 0, 0.8),
			Entry("maximum below minimum", 2, 1, 2, 0.8),
			Entry("initial below minimum", 1, 4, 2, 0.8),
			Entry("initial above maximum", 5, 4, 1, 0.8),
			Entry("threshold of zero", 2, 4, 1, 0.0),
			Entry("threshold of one", 2, 4, 1, 1.0),
		)
	})

	Context("with two workers and ten unit-cost requests", func() {
		It("should drain the queue within the distribute budget", func() {
			d, err := NewDispatcher(2, 4, 1, 0.8)
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 10, 1)

			// four placements per cycle: twice the pool size
			Expect(d.AdvanceCycle(ctx)).To(Equal(0))
			Expect(d.QueueSize()).To(Equal(6))
			Expect(loads(d)).To(Equal([]int{2, 2}))

			Expect(d.AdvanceCycle(ctx)).To(Equal(4))
			Expect(d.QueueSize()).To(Equal(2))

			Expect(d.AdvanceCycle(ctx)).To(Equal(4))
			Expect(d.QueueSize()).To(Equal(0))
			Expect(loads(d)).To(Equal([]int{1, 1}))

			Expect(d.AdvanceCycle(ctx)).To(Equal(2))
			Expect(d.TotalProcessed()).To(Equal(10))
			Expect(d.PoolSize()).To(Equal(2))
			Expect(d.AverageProcessingTime()).To(BeNumerically("~", 1.0, 1e-9))
			Expect(d.Cycle()).To(Equal(4))
		})
	})

	Context("round-robin distribution", func() {
		It("should resume from the worker after the last one that accepted", func() {
			d, err := NewDispatcher(3, 3, 1, 0.8, WithScalingPolicy(scaling.NewStaticPolicy()))
			Expect(err).NotTo(HaveOccurred())

			submitN(d, 3, 10)
			d.AdvanceCycle(ctx)
			Expect(loads(d)).To(Equal([]int{1, 1, 1}))

			submitN(d, 2, 10)
			d.AdvanceCycle(ctx)
			Expect(loads(d)).To(Equal([]int{2, 2, 1}))

			submitN(d, 1, 10)
			d.AdvanceCycle(ctx)
			Expect(loads(d)).To(Equal([]int{2, 2, 2}))
		})

		It("should skip inactive workers", func() {
			d, err := NewDispatcher(2, 2, 1, 0.8, WithScalingPolicy(scaling.NewStaticPolicy()))
			Expect(err).NotTo(HaveOccurred())
			d.workers[0].SetActive(false)

			submitN(d, 3, 10)
			d.AdvanceCycle(ctx)
			Expect(loads(d)).To(Equal([]int{0, 3}))
			Expect(d.ActiveWorkerCount()).To(Equal(1))
			Expect(d.SystemUtilization()).To(BeNumerically("~", 60.0, 1e-9))
		})

		It("should stop when no worker can accept", func() {
			d, err := NewDispatcher(1, 1, 1, 0.8)
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 8, 100)

			for range 5 {
				d.AdvanceCycle(ctx)
			}
			Expect(loads(d)).To(Equal([]int{PoolWorkerCapacity}))
			Expect(d.QueueSize()).To(Equal(3))
		})
	})

	Context("scaling", func() {
		It("should grow one worker per cycle under queue pressure and stop at the maximum", func() {
			d, err := NewDispatcher(1, 3, 1, 0.8)
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 20, 100)

			d.AdvanceCycle(ctx)
			Expect(d.PoolSize()).To(Equal(2))
			d.AdvanceCycle(ctx)
			Expect(d.PoolSize()).To(Equal(3))
			for range 10 {
				d.AdvanceCycle(ctx)
				Expect(d.PoolSize()).To(Equal(3))
			}

			err = d.AddWorker()
			Expect(err).To(MatchError(ErrPoolAtMaximum))
			Expect(ReasonFor(err)).To(Equal(ReasonBoundReached))
		})

		It("should shrink an idle pool down to minimum plus headroom", func() {
			d, err := NewDispatcher(6, 10, 1, 0.8)
			Expect(err).NotTo(HaveOccurred())

			d.AdvanceCycle(ctx)
			Expect(d.PoolSize()).To(Equal(5))
			for range 5 {
				d.AdvanceCycle(ctx)
			}
			Expect(d.PoolSize()).To(Equal(4))
		})

		It("should never resize with the static policy", func() {
			d, err := NewDispatcher(2, 6, 1, 0.8, WithScalingPolicy(scaling.NewStaticPolicy()))
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 50, 100)
			for range 10 {
				d.AdvanceCycle(ctx)
			}
			Expect(d.PoolSize()).To(Equal(2))
		})
	})

	Context("worker removal", func() {
		It("should discard requests resident on the removed worker", func() {
			d, err := NewDispatcher(3, 5, 1, 0.8, WithScalingPolicy(scaling.NewStaticPolicy()))
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 6, 10)
			d.AdvanceCycle(ctx)
			Expect(loads(d)).To(Equal([]int{2, 2, 2}))

			Expect(d.RemoveWorker()).To(Succeed())
			Expect(d.PoolSize()).To(Equal(2))
			Expect(d.Discarded()).To(Equal(2))

			Expect(d.RemoveWorker()).To(Succeed())
			Expect(d.Discarded()).To(Equal(4))

			err = d.RemoveWorker()
			Expect(err).To(MatchError(ErrPoolAtMinimum))
			Expect(d.PoolSize()).To(Equal(1))
		})

		It("should number added workers after the current pool size", func() {
			d, err := NewDispatcher(1, 3, 1, 0.8)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.AddWorker()).To(Succeed())
			Expect(d.ServerStats()[1]).To(HavePrefix("Server 2 (192.168.1.2): Load: 0/5"))
		})
	})

	Context("conservation", func() {
		It("should account for every admitted request", func() {
			d, err := NewDispatcher(2, 6, 1, 0.8, WithQueueCapacity(40))
			Expect(err).NotTo(HaveOccurred())

			admitted := 0
			for cycle := range 300 {
				if cycle < 200 {
					for j := range cycle%4 + 1 {
						if d.Submit(makeRequest(cycle*10+j, cycle%7+1)) == nil {
							admitted++
						}
					}
				}
				d.AdvanceCycle(ctx)

				Expect(d.QueueSize() + resident(d) + d.TotalProcessed() + d.Discarded()).To(Equal(admitted))
				Expect(d.PoolSize()).To(BeNumerically(">=", 1))
				Expect(d.PoolSize()).To(BeNumerically("<=", 6))
				for _, w := range d.workers {
					Expect(w.Load()).To(BeNumerically("<=", w.Capacity()))
				}
			}
		})
	})

	Context("overload", func() {
		It("should follow queue and system utilization", func() {
			d, err := NewDispatcher(1, 1, 1, 0.8, WithQueueCapacity(10))
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 10, 100)
			Expect(d.IsOverloaded()).To(BeTrue())

			d.AdvanceCycle(ctx)
			// queue at exactly 80% and workers at 40%
			Expect(d.QueueUtilization()).To(BeNumerically("~", 80.0, 1e-9))
			Expect(d.IsOverloaded()).To(BeFalse())

			d.AdvanceCycle(ctx)
			d.AdvanceCycle(ctx)
			Expect(d.SystemUtilization()).To(BeNumerically("~", 100.0, 1e-9))
			Expect(d.IsOverloaded()).To(BeTrue())
		})
	})

	Context("observability", func() {
		It("should report one line per worker", func() {
			d, err := NewDispatcher(2, 4, 1, 0.8, WithScalingPolicy(scaling.NewStaticPolicy()))
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 3, 5)
			d.AdvanceCycle(ctx)

			want := []string{
				"Server 1 (192.168.1.1): Load: 2/5 (40.0%) | Processed: 0 | Active: Yes",
				"Server 2 (192.168.1.2): Load: 1/5 (20.0%) | Processed: 0 | Active: Yes",
			}
			Expect(cmp.Diff(want, d.ServerStats())).To(BeEmpty())
		})

		It("should capture counters in a snapshot", func() {
			d, err := NewDispatcher(2, 4, 1, 0.8, WithScalingPolicy(scaling.NewStaticPolicy()))
			Expect(err).NotTo(HaveOccurred())
			submitN(d, 3, 1)
			d.AdvanceCycle(ctx)
			d.AdvanceCycle(ctx)

			want := Snapshot{
				Cycle:                 2,
				PoolSize:              2,
				ActiveWorkers:         2,
				TotalProcessed:        3,
				AverageProcessingTime: 1,
				WorkerLoads:           map[int]int{1: 0, 2: 0},
			}
			Expect(cmp.Diff(want, d.Snapshot())).To(BeEmpty())
		})
	})

	Context("block-list", func() {
		It("should deny blocked origins until unblocked", func() {
			d, err := NewDefaultDispatcher()
			Expect(err).NotTo(HaveOccurred())

			d.BlockIP("10.1.1.1")
			Expect(d.IsBlocked("10.1.1.1")).To(BeTrue())
			err = d.Submit(makeRequest(1, 3))
			Expect(ReasonFor(err)).To(Equal(ReasonBlocked))
			Expect(d.QueueSize()).To(Equal(0))

			d.UnblockIP("10.1.1.1")
			Expect(d.Submit(makeRequest(2, 3))).To(Succeed())
			Expect(d.QueueSize()).To(Equal(1))
		})

		It("should report a full queue", func() {
			d, err := NewDefaultDispatcher(WithQueueCapacity(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Submit(makeRequest(1, 3))).To(Succeed())
			Expect(ReasonFor(d.Submit(makeRequest(2, 3)))).To(Equal(ReasonQueueFull))
		})
	})
})
