package service

import "time"

// Clock 服务时钟，测试中注入固定时间
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func (c Clock) now() time.Time {
	if c == nil {
		return systemClock()
	}
	return c().UTC()
}
