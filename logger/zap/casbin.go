package zap

import (
	casbinl "github.com/casbin/casbin/v2/log"
	"github.com/forbearing/stratadb/logger"
)

// CasbinLogger adapts logger.Logger to casbin's log.Logger interface so the
// IAM package's enforcer logs through the same sink as the rest of the
// engine instead of casbin's own default logger.
type CasbinLogger struct {
	l       logger.Logger
	enabled bool
}

var _ casbinl.Logger = (*CasbinLogger)(nil)

// NewCasbin builds a casbin log.Logger backed by l.
func NewCasbin(l logger.Logger) *CasbinLogger {
	return &CasbinLogger{l: l}
}

func (c *CasbinLogger) EnableLog(enabled bool) { c.enabled = enabled }
func (c *CasbinLogger) IsEnabled() bool         { return c.enabled }

func (c *CasbinLogger) LogModel(model [][]string) {
	if !c.enabled {
		return
	}
	c.l.Infow("casbin model", "model", model)
}

func (c *CasbinLogger) LogEnforce(matcher string, request []any, result bool, explains [][]string) {
	if !c.enabled {
		return
	}
	c.l.Infow("casbin enforce", "matcher", matcher, "request", request, "result", result, "explains", explains)
}

func (c *CasbinLogger) LogPolicy(policy map[string][][]string) {
	if !c.enabled {
		return
	}
	for k, vl := range policy {
		for _, v := range vl {
			c.l.Infow("casbin policy", k, v)
		}
	}
}

func (c *CasbinLogger) LogRole(roles []string) {
	if !c.enabled {
		return
	}
	c.l.Infow("casbin role", "roles", roles)
}

func (c *CasbinLogger) LogError(err error, msg ...string) {
	c.l.Errorw("casbin error", "err", err, "msg", msg)
}
