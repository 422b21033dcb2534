package speedrun_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/adapters/speedrun"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"
)

const leaderboardJSON = `{"data":{
  "runs":[
    {"place":1,"run":{"times":{"primary_t":100},"players":[{"rel":"user","id":"u1"}]}},
    {"place":2,"run":{"times":{"primary_t":120},"players":[{"rel":"user","id":"cheat"}]}},
    {"place":0,"run":{"times":{"primary_t":130},"players":[{"rel":"guest","name":"Bob"}]}}
  ],
  "players":{"data":[
    {"rel":"user","id":"u1","role":"user"},
    {"rel":"user","id":"cheat","role":"banned"},
    {"rel":"guest","name":"Bob"}
  ]}
}}`

func newTestClient(srv *httptest.Server, opts ...speedrun.Option) *speedrun.Client {
	base := []speedrun.Option{
		speedrun.WithBaseURL(srv.URL),
		speedrun.WithHTTPClient(srv.Client()),
		speedrun.WithRetryDelay(time.Millisecond),
	}
	return speedrun.New(append(base, opts...)...)
}

func TestClient_Resources(t *testing.T) {
	Convey("Given a fake speedrun.com API", t, func() {
		var variableHits, levelHits atomic.Int32
		var lastQuery, lastPath atomic.Value

		mux := http.NewServeMux()
		mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"id":"8v1","weblink":"https://www.speedrun.com/user/Runner",
				"names":{"international":"Runner","japanese":"ランナー"},"role":"banned"}}`))
		})
		mux.HandleFunc("GET /users/{id}/personal-bests", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[
				{"place":1,"run":{"id":"r1","game":"g1","category":"c1","level":null,
					"values":{"v1":"a"},"times":{"primary_t":61.5},
					"videos":{"links":[{"uri":"https://youtu.be/1"}]}}},
				{"place":3,"run":{"id":"r2","game":"g1","category":"c2","level":"l1",
					"values":{},"times":{"primary_t":10},"videos":null}}
			]}`))
		})
		mux.HandleFunc("GET /games/{id}/variables", func(w http.ResponseWriter, r *http.Request) {
			variableHits.Add(1)
			_, _ = w.Write([]byte(`{"data":[{"id":"v1","is-subcategory":true},{"id":"v2","is-subcategory":false}]}`))
		})
		mux.HandleFunc("GET /games/{id}/levels", func(w http.ResponseWriter, r *http.Request) {
			levelHits.Add(1)
			_, _ = w.Write([]byte(`{"data":[{"id":"l1"},{"id":"l2"},{"id":"l3"}]}`))
		})
		mux.HandleFunc("GET /leaderboards/", func(w http.ResponseWriter, r *http.Request) {
			lastPath.Store(r.URL.Path)
			lastQuery.Store(map[string][]string(r.URL.Query()))
			_, _ = w.Write([]byte(leaderboardJSON))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		client := newTestClient(srv)
		ctx := context.Background()

		Convey("When resolving a profile", func() {
			id, err := client.Profile(ctx, "Runner")

			Convey("Then names and role are mapped", func() {
				So(err, ShouldBeNil)
				So(id, ShouldResemble, model.ProfileIdentity{
					ID:          "8v1",
					DisplayName: "Runner (ランナー)",
					Weblink:     "https://www.speedrun.com/user/Runner",
					Banned:      true,
				})
			})
		})

		Convey("When listing personal bests", func() {
			pbs, err := client.PersonalBests(ctx, "8v1")

			Convey("Then null levels and videos become empty values", func() {
				So(err, ShouldBeNil)
				want := []model.PersonalBest{
					{RunID: "r1", GameID: "g1", CategoryID: "c1", Values: map[string]string{"v1": "a"},
						Metric: 61.5, VideoLinks: []string{"https://youtu.be/1"}},
					{RunID: "r2", GameID: "g1", CategoryID: "c2", LevelID: "l1", Values: map[string]string{},
						Metric: 10},
				}
				So(cmp.Diff(want, pbs), ShouldBeEmpty)
			})
		})

		Convey("When fetching game metadata twice", func() {
			vars, err := client.Variables(ctx, "g1")
			So(err, ShouldBeNil)
			_, err = client.Variables(ctx, "g1")
			So(err, ShouldBeNil)
			count, err := client.LevelCount(ctx, "g1")
			So(err, ShouldBeNil)
			_, err = client.LevelCount(ctx, "g1")
			So(err, ShouldBeNil)

			Convey("Then each resource is requested once", func() {
				So(vars, ShouldResemble, []model.Variable{{ID: "v1", IsSubcategory: true}, {ID: "v2"}})
				So(count, ShouldEqual, 3)
				So(variableHits.Load(), ShouldEqual, 1)
				So(levelHits.Load(), ShouldEqual, 1)
			})
		})

		Convey("When fetching a level leaderboard with attributes", func() {
			lb, err := client.Leaderboard(ctx, "g1", "c1", "l1", map[string]string{"v1": "a"})

			Convey("Then the request targets the level and filters", func() {
				So(err, ShouldBeNil)
				So(lastPath.Load(), ShouldEqual, "/leaderboards/g1/level/l1/c1")
				q := lastQuery.Load().(map[string][]string)
				So(q["video-only"], ShouldResemble, []string{"true"})
				So(q["embed"], ShouldResemble, []string{"players"})
				So(q["var-v1"], ShouldResemble, []string{"a"})
			})

			Convey("Then entries and banned players are mapped", func() {
				So(len(lb.Entries), ShouldEqual, 3)
				So(lb.Entries[0], ShouldResemble, model.RankedEntry{Place: 1, Metric: 100, PlayerIDs: []string{"u1"}})
				So(lb.Entries[2].PlayerIDs, ShouldBeEmpty)
				So(lb.IsBanned(lb.Entries[1]), ShouldBeTrue)
				So(lb.IsBanned(lb.Entries[0]), ShouldBeFalse)
			})
		})

		Convey("When fetching a full-game leaderboard", func() {
			_, err := client.Leaderboard(ctx, "g1", "c1", "", nil)

			So(err, ShouldBeNil)
			So(lastPath.Load(), ShouldEqual, "/leaderboards/g1/category/c1")
		})
	})
}

func TestClient_RetryContract(t *testing.T) {
	Convey("Given a server with scripted statuses", t, func() {
		var hits atomic.Int32
		var handler atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := hits.Add(1)
			handler.Load().(func(http.ResponseWriter, int32))(w, n)
		}))
		defer srv.Close()
		ctx := context.Background()

		Convey("When a retryable status clears up", func() {
			handler.Store(func(w http.ResponseWriter, n int32) {
				if n < 3 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				_, _ = w.Write([]byte(`{"data":[]}`))
			})
			count, err := newTestClient(srv).LevelCount(ctx, "g1")

			Convey("Then the same request is retried until it succeeds", func() {
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 0)
				So(hits.Load(), ShouldEqual, 3)
			})
		})

		Convey("When throttled with an error envelope", func() {
			handler.Store(func(w http.ResponseWriter, n int32) {
				if n == 1 {
					w.WriteHeader(420)
					_, _ = w.Write([]byte(`{"status":420,"message":"slow down"}`))
					return
				}
				_, _ = w.Write([]byte(`{"data":[]}`))
			})
			_, err := newTestClient(srv).LevelCount(ctx, "g1")

			Convey("Then the retryable status wins over the envelope", func() {
				So(err, ShouldBeNil)
				So(hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the API answers with an error envelope", func() {
			handler.Store(func(w http.ResponseWriter, _ int32) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":404,"message":"User not found"}`))
			})
			_, err := newTestClient(srv).Profile(ctx, "ghost")

			Convey("Then an upstream error is returned without retrying", func() {
				var upErr *speedrun.UpstreamError
				So(errors.As(err, &upErr), ShouldBeTrue)
				So(upErr.Status, ShouldEqual, 404)
				So(upErr.Message, ShouldEqual, "User not found")
				So(upErr.Kind(), ShouldEqual, speedrun.KindUpstream)
				So(hits.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the status is neither retryable nor an envelope", func() {
			handler.Store(func(w http.ResponseWriter, _ int32) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`forbidden`))
			})
			_, err := newTestClient(srv).Profile(ctx, "x")

			Convey("Then the status code is surfaced immediately", func() {
				var statusErr *speedrun.HTTPStatusError
				So(errors.As(err, &statusErr), ShouldBeTrue)
				So(statusErr.StatusCode, ShouldEqual, http.StatusForbidden)
				So(statusErr.Retryable, ShouldBeFalse)
				So(statusErr.Kind(), ShouldEqual, speedrun.KindHTTPStatus)
				So(hits.Load(), ShouldEqual, 1)
			})
		})

		Convey("When a retry ceiling is configured", func() {
			handler.Store(func(w http.ResponseWriter, _ int32) {
				w.WriteHeader(http.StatusBadGateway)
			})
			_, err := newTestClient(srv, speedrun.WithMaxAttempts(2)).Profile(ctx, "x")

			Convey("Then the last retryable status is returned", func() {
				var statusErr *speedrun.HTTPStatusError
				So(errors.As(err, &statusErr), ShouldBeTrue)
				So(statusErr.StatusCode, ShouldEqual, http.StatusBadGateway)
				So(statusErr.Retryable, ShouldBeTrue)
				So(hits.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the run is cancelled during the retry wait", func() {
			handler.Store(func(w http.ResponseWriter, _ int32) {
				w.WriteHeader(http.StatusServiceUnavailable)
			})
			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			start := time.Now()
			_, err := newTestClient(srv, speedrun.WithRetryDelay(time.Hour)).Profile(cctx, "x")

			Convey("Then the wait is abandoned", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(time.Since(start), ShouldBeLessThan, 10*time.Second)
			})
		})

		Convey("When the body is not JSON", func() {
			handler.Store(func(w http.ResponseWriter, _ int32) {
				_, _ = w.Write([]byte(`<html>`))
			})
			_, err := newTestClient(srv).Profile(ctx, "x")

			So(errors.Is(err, speedrun.ErrDecode), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable server", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		client := newTestClient(srv)
		srv.Close()

		Convey("When fetching", func() {
			_, err := client.Profile(context.Background(), "x")

			Convey("Then a connection error is returned", func() {
				var connErr *speedrun.ConnectionError
				So(errors.As(err, &connErr), ShouldBeTrue)
				So(connErr.Kind(), ShouldEqual, speedrun.KindConnection)
			})
		})
	})
}

func TestLeaderboardURL(t *testing.T) {
	Convey("Given the default client", t, func() {
		c := speedrun.New()

		So(c.LeaderboardURL("sm64", "120 star", "", map[string]string{"b": "2", "a": "1"}), ShouldEqual,
			"https://www.speedrun.com/api/v1/leaderboards/sm64/category/120%20star?embed=players&var-a=1&var-b=2&video-only=true")
	})
}

func TestClient_SharedMetadataFetch(t *testing.T) {
	Convey("Given a variables endpoint that holds its first request", t, func() {
		var hits atomic.Int32
		started := make(chan struct{}, 1)
		abandoned := make(chan struct{}, 1)
		release := make(chan struct{})

		mux := http.NewServeMux()
		mux.HandleFunc("GET /games/{id}/variables", func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				started <- struct{}{}
				select {
				case <-release:
				case <-r.Context().Done():
					abandoned <- struct{}{}
					return
				}
			}
			_, _ = w.Write([]byte(`{"data":[{"id":"v1","is-subcategory":true}]}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()
		client := newTestClient(srv)

		Convey("When the caller that started the fetch is cancelled while another waits on it", func() {
			ctxA, cancelA := context.WithCancel(context.Background())
			defer cancelA()
			errA := make(chan error, 1)
			go func() {
				_, err := client.Variables(ctxA, "g1")
				errA <- err
			}()
			<-started

			type result struct {
				vars []model.Variable
				err  error
			}
			resB := make(chan result, 1)
			go func() {
				vars, err := client.Variables(context.Background(), "g1")
				resB <- result{vars, err}
			}()
			time.Sleep(50 * time.Millisecond)

			cancelA()
			gotA := <-errA
			close(release)
			gotB := <-resB

			Convey("Then only the cancelled caller fails", func() {
				So(errors.Is(gotA, context.Canceled), ShouldBeTrue)
				So(gotB.err, ShouldBeNil)
				So(gotB.vars, ShouldResemble, []model.Variable{{ID: "v1", IsSubcategory: true}})
				So(hits.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the only waiter is cancelled", func() {
			defer close(release)
			ctxA, cancelA := context.WithCancel(context.Background())
			errA := make(chan error, 1)
			go func() {
				_, err := client.Variables(ctxA, "g1")
				errA <- err
			}()
			<-started
			cancelA()
			gotA := <-errA

			Convey("Then the request is abandoned and a later caller fetches afresh", func() {
				So(errors.Is(gotA, context.Canceled), ShouldBeTrue)
				cancelled := false
				select {
				case <-abandoned:
					cancelled = true
				case <-time.After(2 * time.Second):
				}
				So(cancelled, ShouldBeTrue)

				vars, err := client.Variables(context.Background(), "g1")
				So(err, ShouldBeNil)
				So(vars, ShouldHaveLength, 1)
				So(hits.Load(), ShouldEqual, 2)
			})
		})
	})
}
