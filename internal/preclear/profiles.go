package preclear

import (
	"fmt"
	"sort"
)

var profiles = map[string]func(*Options){
	"default": func(o *Options) {
		o.Op = ""
		o.Passes = 1
	},
	"fast": func(o *Options) {
		o.Op = ""
		o.Passes = 1
		o.FastRead = true
	},
	"thorough": func(o *Options) {
		o.Op = ""
		o.Passes = 3
		o.SkipPreRead = false
	},
	"verify": func(o *Options) {
		o.Op = OpVerify
	},
}

// ApplyProfile applies a named preset on top of opts.
func ApplyProfile(opts *Options, profile string) error {
	apply, ok := profiles[profile]
	if !ok {
		return fmt.Errorf("unknown profile: %s", profile)
	}
	apply(opts)
	return nil
}

// Profiles returns the preset names in sorted order.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
