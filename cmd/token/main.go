package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/fanzfinance/internal/authz"
	"github.com/fanzfinance/internal/config"
	"github.com/fanzfinance/internal/logger"
)

func main() {
	var serviceName string
	var ttlHours int
	flag.StringVar(&serviceName, "service", "", "调用方服务名")
	flag.IntVar(&ttlHours, "ttl-hours", -1, "有效期小时数，默认读取 jwt.token_ttl_hours")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if serviceName == "" {
		stdLog.Fatalf("缺少 -service 参数")
	}
	ttl := cfg.JWT.TokenTTL()
	if ttlHours >= 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}

	token, err := authz.IssueServiceToken(cfg.JWT.SecretKey, cfg.JWT.Issuer, serviceName, ttl, time.Now())
	if err != nil {
		stdLog.Fatalf("签发令牌失败: %v", err)
	}
	fmt.Println(token)
}
