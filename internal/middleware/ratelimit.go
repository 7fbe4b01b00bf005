package middleware

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/prompt-manim/backend/pkg/utils"
)

// RateLimit 针对单个客户端限制提交频率。每次运行都要花两次模型调用
// 加一次渲染子进程，放任重复提交会很快烧光配额。
func RateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := limiters[key]; ok {
			return l
		}
		l := rate.NewLimiter(limit, burst)
		limiters[key] = l
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !limiterFor(host).Allow() {
				utils.RespondError(w, http.StatusTooManyRequests, "too many submissions, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
