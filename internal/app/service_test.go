package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nakshatra/internal/adapters/repository"
	service "github.com/okian/nakshatra/internal/app"
	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/ephemeris"
	"github.com/okian/nakshatra/internal/domain/model"
	"github.com/okian/nakshatra/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var tropical = map[ephemeris.Body]float64{
	ephemeris.Sun:     100,
	ephemeris.Moon:    200,
	ephemeris.Mercury: 110,
	ephemeris.Venus:   90,
	ephemeris.Mars:    300,
	ephemeris.Jupiter: 45,
	ephemeris.Saturn:  250,
}

func fixedProvider(gate <-chan struct{}) ephemeris.Provider {
	return ephemeris.ProviderFunc(func(ctx context.Context, body ephemeris.Body, _ time.Time) (float64, error) {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		lon, ok := tropical[body]
		if !ok {
			return 0, ephemeris.ErrUnsupportedBody
		}
		return lon, nil
	})
}

var clock = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func birthProfile(userID string) model.BirthProfile {
	p, err := model.NewBirthProfile(userID, "Ravi", "Ongole",
		time.Date(1976, 7, 31, 8, 12, 0, 0, time.UTC), 15.5057, 80.0499, clock)
	if err != nil {
		panic(err)
	}
	return p
}

func waitForChart(store repository.ProfileStore, userID string) (chart.Chart, error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := store.GetNatalChart(context.Background(), userID)
		if err == nil || time.Now().After(deadline) {
			return c, err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report as stopped", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["store"], ShouldEqual, repository.DriverMemory)
		})

		Convey("Then operations should fail until started", func() {
			_, err := svc.Transits(context.Background(), clock)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Register(context.Background(), birthProfile("u1"))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then it should not be ready", func() {
			err := svc.Ready(context.Background())
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_StartShutdown(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(10))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["workers"], ShouldEqual, 2)
				So(stats["totalProfiles"], ShouldEqual, 0)
				So(svc.Ready(ctx), ShouldBeNil)
				So(svc.Shutdown(ctx), ShouldBeNil)
			})

			Convey("Then starting twice should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.Shutdown(ctx), ShouldBeNil)
			})

			Convey("And stopping it", func() {
				So(svc.Shutdown(ctx), ShouldBeNil)

				Convey("Then it should be marked as stopped", func() {
					So(svc.GetStats()["started"], ShouldEqual, false)
					So(svc.Shutdown(ctx), ShouldBeNil)
				})
			})
		})

		Convey("When the store cannot be opened", func() {
			svc := service.New(service.WithStoreConfig(repository.Config{Driver: "etcd"}))
			err := svc.Start(ctx)

			Convey("Then start should fail", func() {
				So(err, ShouldNotBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Register(t *testing.T) {
	Convey("Given a started service over a memory store", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store := repository.NewMemoryStore()
		svc := service.New(
			service.WithStore(store),
			service.WithProvider(fixedProvider(nil)),
			service.WithClock(func() time.Time { return clock }),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Shutdown(ctx)

		Convey("When a profile is registered", func() {
			reg, err := svc.Register(ctx, birthProfile("u1"))
			So(err, ShouldBeNil)

			Convey("Then a natal job should be queued", func() {
				So(reg.Queued, ShouldBeTrue)
				So(reg.JobID, ShouldNotBeEmpty)
				So(reg.Profile.UserID, ShouldEqual, "u1")
			})

			Convey("Then a worker should store the natal chart", func() {
				c, err := waitForChart(store, "u1")
				So(err, ShouldBeNil)
				So(c.Planets, ShouldHaveLength, 8)
				So(c.Instant.Equal(birthProfile("u1").BirthInstant), ShouldBeTrue)
			})

			Convey("Then the profile should be readable", func() {
				p, err := svc.Profile(ctx, "u1")
				So(err, ShouldBeNil)
				So(p.Place, ShouldEqual, "Ongole")
			})

			Convey("Then registering the same user should conflict", func() {
				_, err := svc.Register(ctx, birthProfile("u1"))
				So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)
			})
		})

		Convey("When an invalid profile is registered", func() {
			p := birthProfile("u2")
			p.Latitude = 91
			_, err := svc.Register(ctx, p)

			Convey("Then it should be rejected before storing", func() {
				So(errors.Is(err, model.ErrInvalidProfile), ShouldBeTrue)
				_, err := svc.Profile(ctx, "u2")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When reading an unknown profile's chart", func() {
			_, err := svc.NatalChart(ctx, "nobody")

			Convey("Then it should be not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_ShutdownDuringRequest(t *testing.T) {
	Convey("Given a chart read blocked in the provider", t, func() {
		ctx := context.Background()
		gate := make(chan struct{})
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(4),
			service.WithProvider(fixedProvider(gate)),
			service.WithStoreConfig(repository.Config{
				Driver:     repository.DriverSQLite,
				SQLitePath: filepath.Join(t.TempDir(), "charts.db"),
			}),
			service.WithClock(func() time.Time { return clock }),
		)
		So(svc.Start(ctx), ShouldBeNil)

		reg, err := svc.Register(ctx, birthProfile("u1"))
		So(err, ShouldBeNil)
		So(reg.Queued, ShouldBeTrue)

		type result struct {
			chart chart.Chart
			err   error
			panic any
		}
		done := make(chan result, 1)
		go func() {
			var r result
			defer func() {
				r.panic = recover()
				done <- r
			}()
			r.chart, r.err = svc.NatalChart(ctx, "u1")
		}()
		time.Sleep(50 * time.Millisecond)

		Convey("When shutdown times out and the provider is released", func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			err := svc.Shutdown(shutdownCtx)
			close(gate)

			Convey("Then the in-flight read finishes without a panic", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)

				var r result
				select {
				case r = <-done:
				case <-time.After(5 * time.Second):
					So("natal chart read did not return", ShouldBeEmpty)
				}
				So(r.panic, ShouldBeNil)
				So(r.err, ShouldBeNil)
				So(r.chart.Planets, ShouldHaveLength, len(ephemeris.ChartBodies))

				_, err := svc.Profile(ctx, "u1")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose single worker is blocked", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gate := make(chan struct{})
		store := repository.NewMemoryStore()
		svc := service.New(
			service.WithStore(store),
			service.WithProvider(fixedProvider(gate)),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When more profiles register than the queue holds", func() {
			var unqueued []string
			for _, id := range []string{"a", "b", "c", "d", "e"} {
				reg, err := svc.Register(ctx, birthProfile(id))
				So(err, ShouldBeNil)
				if !reg.Queued {
					unqueued = append(unqueued, id)
				}
			}

			Convey("Then every registration should succeed and the overflow compute lazily", func() {
				So(len(unqueued), ShouldBeGreaterThanOrEqualTo, 2)
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 5)

				close(gate)
				c, err := svc.NatalChart(ctx, unqueued[0])
				So(err, ShouldBeNil)
				So(c.Planets, ShouldHaveLength, 8)

				stored, err := store.GetNatalChart(ctx, unqueued[0])
				So(err, ShouldBeNil)
				So(stored.Planets, ShouldResemble, c.Planets)
				So(svc.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Charts(t *testing.T) {
	Convey("Given a started service with a fixed provider", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(
			service.WithProvider(fixedProvider(nil)),
			service.WithClock(func() time.Time { return clock }),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Shutdown(ctx)

		Convey("When computing an ad hoc chart", func() {
			c, err := svc.AdHocChart(ctx, clock, 12.97, 77.59)

			Convey("Then it should hold every chart body", func() {
				So(err, ShouldBeNil)
				So(c.Planets, ShouldHaveLength, 8)
				So(c.Latitude, ShouldEqual, 12.97)
			})
		})

		Convey("When the location is out of range", func() {
			_, err := svc.AdHocChart(ctx, clock, 12.97, 181)

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, chart.ErrInvalidLocation), ShouldBeTrue)
			})
		})

		Convey("When transits are requested without an instant", func() {
			got, err := svc.Transits(ctx, time.Time{})
			So(err, ShouldBeNil)
			want, err := svc.Transits(ctx, clock)
			So(err, ShouldBeNil)

			Convey("Then the service clock should be used", func() {
				So(got, ShouldResemble, want)
				So(got, ShouldHaveLength, 8)
			})
		})

		Convey("When rendering the context block of a registered user", func() {
			_, err := svc.Register(ctx, birthProfile("ctx-user"))
			So(err, ShouldBeNil)
			text, err := svc.Context(ctx, "ctx-user", clock)

			Convey("Then it should contain both sections", func() {
				So(err, ShouldBeNil)
				So(text, ShouldStartWith, "BIRTH CHART DATA:\nAscendant: ")
				So(text, ShouldContainSubstring, "\n\nPLANETARY POSITIONS:\n")
				So(text, ShouldContainSubstring, "\n\nCURRENT TRANSITS:\n")
			})
		})
	})
}

func TestService_ProviderFailure(t *testing.T) {
	Convey("Given a service whose provider fails", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		boom := errors.New("kernel file missing")
		svc := service.New(
			service.WithProvider(ephemeris.ProviderFunc(func(context.Context, ephemeris.Body, time.Time) (float64, error) {
				return 0, boom
			})),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Shutdown(ctx)

		Convey("When computing transits", func() {
			_, err := svc.Transits(ctx, clock)

			Convey("Then the failure should surface as a provider error", func() {
				So(errors.Is(err, chart.ErrEphemerisProvider), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When a registered user's chart is read", func() {
			_, err := svc.Register(ctx, birthProfile("f1"))
			So(err, ShouldBeNil)
			_, err = svc.NatalChart(ctx, "f1")

			Convey("Then no chart should be stored", func() {
				So(errors.Is(err, chart.ErrEphemerisProvider), ShouldBeTrue)
			})
		})
	})
}
