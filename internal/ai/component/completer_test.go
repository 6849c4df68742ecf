package component

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"parley/internal/config"
	"parley/internal/model/chat"
	"parley/internal/pkg/ark"
)

const arkReply = `{"id":"cmpl-1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}],"usage":{"prompt_tokens":2,"completion_tokens":1,"total_tokens":3}}`

// newArkServer 模拟 Ark 接口，每个请求都要等到 want 个请求同时在途才返回
func newArkServer(want int32) (*httptest.Server, *int32) {
	var inflight, peak int32
	arrived := make(chan struct{})
	var once sync.Once

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		if n >= want {
			once.Do(func() { close(arrived) })
		}

		select {
		case <-arrived:
		case <-time.After(3 * time.Second):
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(arkReply))
	}))
	return srv, &peak
}

func TestArkCompleterConcurrent(t *testing.T) {
	Convey("ArkCompleter 并发调用", t, func() {
		const callers = 3
		srv, peak := newArkServer(callers)
		defer srv.Close()

		client, err := ark.NewClient(&config.AIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
		So(err, ShouldBeNil)
		completer := &ArkCompleter{client: client}
		So(completer.Provider(), ShouldEqual, "ark_sdk")

		turns := []chat.Turn{{Role: chat.RoleUser, Content: "ping"}}
		results := make([]*Result, callers)
		errs := make([]error, callers)

		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// 截止时间短于服务端的等待上限，请求若被串行化将全部超时
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				results[i], errs[i] = completer.Complete(ctx, turns, "", 0.7)
			}(i)
		}
		wg.Wait()

		Convey("所有请求同时在途并成功返回", func() {
			for i := 0; i < callers; i++ {
				So(errs[i], ShouldBeNil)
				So(results[i].Content, ShouldEqual, "pong")
				So(results[i].TotalTokens, ShouldEqual, 3)
			}
			So(atomic.LoadInt32(peak), ShouldEqual, int32(callers))
		})
	})
}
