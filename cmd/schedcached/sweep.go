// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"github.com/diffeo/go-schedcache/cache"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// sweeper returns a cron scheduler that periodically drops expired
// ranges from c.  The caller starts and stops it.
func sweeper(spec string, c *cache.Coordinator, logger logrus.FieldLogger) (*cron.Cron, error) {
	sched := cron.New()
	_, err := sched.AddFunc(spec, func() {
		if n := c.Sweep(); n > 0 {
			logger.WithField("ranges", n).Debug("Swept expired ranges")
		}
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}
