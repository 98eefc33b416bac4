package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/ephemeris"
	"github.com/okian/nakshatra/internal/domain/model"
)

func profile(userID string) model.BirthProfile {
	return model.BirthProfile{
		UserID:       userID,
		Name:         "Ravi",
		Place:        "Ongole",
		BirthInstant: time.Date(1976, 7, 31, 8, 12, 0, 0, time.UTC),
		Latitude:     15.5057,
		Longitude:    80.0499,
		RegisteredAt: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

func natal() chart.Chart {
	return chart.Chart{
		Instant:   time.Date(1976, 7, 31, 8, 12, 0, 0, time.UTC),
		Latitude:  15.5057,
		Longitude: 80.0499,
		Ascendant: chart.Ascendant{Longitude: 227.7, Sign: chart.Scorpio, Degree: 17.7},
		Planets: map[ephemeris.Body]chart.BodyPosition{
			ephemeris.Moon: {Longitude: 160.625, Sign: chart.Virgo, SignNumber: 6, Degree: 10.625, Nakshatra: 12, Pada: 1},
			ephemeris.Rahu: {Longitude: 340.625, Sign: chart.Pisces, SignNumber: 12, Degree: 10.625, Nakshatra: 25, Pada: 3},
		},
		AyanamsaDegrees: 23.5166664,
	}
}

// storeContract exercises the ProfileStore semantics every driver must honour.
func storeContract(newStore func() ProfileStore) func() {
	return func() {
		ctx := context.Background()
		s := newStore()
		Reset(func() { _ = s.Close() })

		Convey("Then the backend should answer a ping", func() {
			So(s.Ping(ctx), ShouldBeNil)
		})

		Convey("When a profile is created", func() {
			So(s.CreateProfile(ctx, profile("u1")), ShouldBeNil)

			Convey("Then it should be readable unchanged", func() {
				got, err := s.GetProfile(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Ravi")
				So(got.Place, ShouldEqual, "Ongole")
				So(got.BirthInstant.Equal(profile("u1").BirthInstant), ShouldBeTrue)
				So(got.RegisteredAt.Equal(profile("u1").RegisteredAt), ShouldBeTrue)
				So(got.Latitude, ShouldEqual, 15.5057)
			})

			Convey("Then registering the same user again should fail", func() {
				err := s.CreateProfile(ctx, profile("u1"))
				So(errors.Is(err, ErrAlreadyExists), ShouldBeTrue)
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("Then the natal chart should be missing until saved", func() {
				_, err := s.GetNatalChart(ctx, "u1")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("And its natal chart is saved", func() {
				So(s.SaveNatalChart(ctx, "u1", natal()), ShouldBeNil)

				Convey("Then the chart should read back equal", func() {
					got, err := s.GetNatalChart(ctx, "u1")
					So(err, ShouldBeNil)
					So(got.Planets, ShouldResemble, natal().Planets)
					So(got.Ascendant, ShouldResemble, natal().Ascendant)
					So(got.AyanamsaDegrees, ShouldEqual, natal().AyanamsaDegrees)
					So(got.Instant.Equal(natal().Instant), ShouldBeTrue)
				})

				Convey("Then a second save should be rejected and leave the first", func() {
					other := natal()
					other.AyanamsaDegrees = 0
					So(errors.Is(s.SaveNatalChart(ctx, "u1", other), ErrChartExists), ShouldBeTrue)
					got, err := s.GetNatalChart(ctx, "u1")
					So(err, ShouldBeNil)
					So(got.AyanamsaDegrees, ShouldEqual, natal().AyanamsaDegrees)
				})
			})
		})

		Convey("When reading an unknown user", func() {
			_, err := s.GetProfile(ctx, "nobody")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When saving a chart for an unknown user", func() {
			err := s.SaveNatalChart(ctx, "nobody", natal())
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When many users register concurrently", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 40)
			for i := 0; i < 20; i++ {
				wg.Add(2)
				id := fmt.Sprintf("c%d", i)
				for j := 0; j < 2; j++ {
					go func() {
						defer wg.Done()
						errs <- s.CreateProfile(ctx, profile(id))
					}()
				}
			}
			wg.Wait()
			close(errs)

			Convey("Then exactly one registration per user should win", func() {
				var ok, dup int
				for err := range errs {
					switch {
					case err == nil:
						ok++
					case errors.Is(err, ErrAlreadyExists):
						dup++
					}
				}
				So(ok, ShouldEqual, 20)
				So(dup, ShouldEqual, 20)
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 20)
			})
		})
	}
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, storeContract(func() ProfileStore {
		return NewMemoryStore(WithShards(4))
	}))

	Convey("Given a stored chart read from a memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		So(s.CreateProfile(ctx, profile("u1")), ShouldBeNil)
		So(s.SaveNatalChart(ctx, "u1", natal()), ShouldBeNil)

		Convey("When the caller mutates the returned planets", func() {
			got, err := s.GetNatalChart(ctx, "u1")
			So(err, ShouldBeNil)
			delete(got.Planets, ephemeris.Moon)

			Convey("Then the stored chart should be unaffected", func() {
				again, err := s.GetNatalChart(ctx, "u1")
				So(err, ShouldBeNil)
				So(len(again.Planets), ShouldEqual, 2)
			})
		})
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a SQLite store", t, storeContract(func() ProfileStore {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "profiles.db"))
		So(err, ShouldBeNil)
		return s
	}))

	Convey("Given a SQLite file that is reopened", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "profiles.db")
		s, err := NewSQLiteStore(ctx, path)
		So(err, ShouldBeNil)
		So(s.CreateProfile(ctx, profile("u1")), ShouldBeNil)
		So(s.SaveNatalChart(ctx, "u1", natal()), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		reopened, err := NewSQLiteStore(ctx, path)
		So(err, ShouldBeNil)
		defer reopened.Close()

		Convey("Then profiles and charts should survive", func() {
			n, err := reopened.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			got, err := reopened.GetNatalChart(ctx, "u1")
			So(err, ShouldBeNil)
			So(got.Planets[ephemeris.Rahu].Sign, ShouldEqual, chart.Pisces)
		})
	})

	Convey("Given a closed SQLite store", t, func() {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "profiles.db"))
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("Then a ping should report it unavailable", func() {
			So(errors.Is(s.Ping(context.Background()), ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("NAKSHATRA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NAKSHATRA_TEST_REDIS_ADDR not set")
	}

	Convey("Given a Redis store", t, storeContract(func() ProfileStore {
		s, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr},
			WithKeyPrefix("nakshatra-test:"+uuid.NewString()+":"))
		So(err, ShouldBeNil)
		return s
	}))
}

func TestOpen(t *testing.T) {
	Convey("Given store configurations", t, func() {
		ctx := context.Background()

		Convey("Then the default driver should be memory", func() {
			s, err := Open(ctx, Config{})
			So(err, ShouldBeNil)
			_, ok := s.(*MemoryStore)
			So(ok, ShouldBeTrue)
		})

		Convey("Then sqlite should open the configured file", func() {
			s, err := Open(ctx, Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
			So(err, ShouldBeNil)
			So(s.Close(), ShouldBeNil)
		})

		Convey("Then an unknown driver should fail", func() {
			_, err := Open(ctx, Config{Driver: "etcd"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestBreaker(t *testing.T) {
	Convey("Given a breaker that trips after two failures", t, func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		b := newBreaker(2, time.Second, func() time.Time { return now })
		boom := errors.New("connection refused")
		fail := func() error { return boom }

		Convey("When outcome errors occur", func() {
			for i := 0; i < 5; i++ {
				So(errors.Is(b.execute(func() error { return ErrNotFound }), ErrNotFound), ShouldBeTrue)
			}

			Convey("Then the breaker should stay closed", func() {
				So(b.current(), ShouldEqual, breakerClosed)
			})
		})

		Convey("When consecutive failures reach the limit", func() {
			So(b.execute(fail), ShouldEqual, boom)
			So(b.execute(fail), ShouldEqual, boom)

			Convey("Then calls should be rejected without running", func() {
				So(b.current(), ShouldEqual, breakerOpen)
				ran := false
				err := b.execute(func() error { ran = true; return nil })
				So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
				So(ran, ShouldBeFalse)
			})

			Convey("Then a successful trial call after the timeout should close it", func() {
				now = now.Add(2 * time.Second)
				So(b.execute(func() error { return nil }), ShouldBeNil)
				So(b.current(), ShouldEqual, breakerClosed)
			})

			Convey("Then a failed trial call should reopen it", func() {
				now = now.Add(2 * time.Second)
				So(b.execute(fail), ShouldEqual, boom)
				So(b.current(), ShouldEqual, breakerOpen)
			})
		})

		Convey("When a success interrupts the failures", func() {
			So(b.execute(fail), ShouldEqual, boom)
			So(b.execute(func() error { return nil }), ShouldBeNil)
			So(b.execute(fail), ShouldEqual, boom)

			Convey("Then the count should restart", func() {
				So(b.current(), ShouldEqual, breakerClosed)
			})
		})
	})
}
