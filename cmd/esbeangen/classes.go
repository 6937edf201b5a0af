package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/sdboyer/esbean/beaninfo"
	"github.com/sdboyer/esbean/config"
	"github.com/sdboyer/esbean/jtype/srcload"
)

// analyze loads the configured packages and analyzes the classes to wrap.
func analyze(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) ([]*beaninfo.BeanInfo, error) {
	u, err := srcload.Load(ctx, cfg.Patterns...)
	if err != nil {
		return nil, err
	}
	names := cfg.Types
	if len(names) == 0 {
		names = classNames(u)
	}
	log.WithField("classes", len(names)).Debug("analyzing")
	return analyzeNames(u, beaninfo.NewIntrospector(u, cfg.IntrospectorOptions(log)...), names)
}

// classNames lists the exported classes of the root packages, leaving out
// EcmaWrap and BeanInfo companions.
func classNames(u *srcload.Universe) []string {
	var out []string
	for _, pkg := range u.Roots() {
		for _, name := range u.ClassNames(pkg) {
			if strings.HasSuffix(name, "EcmaWrap") || strings.HasSuffix(name, "BeanInfo") {
				continue
			}
			out = append(out, name)
		}
	}
	return out
}

func analyzeNames(u *srcload.Universe, in *beaninfo.Introspector, names []string) ([]*beaninfo.BeanInfo, error) {
	var (
		infos  []*beaninfo.BeanInfo
		result *multierror.Error
	)
	for _, name := range names {
		t, ok := u.Lookup(name)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("class %s not found", name))
			continue
		}
		infos = append(infos, in.Analyze(t))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return infos, nil
}
