package preclear

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidOption is returned for option values that cannot be typed into a
// shell session safely.
var ErrInvalidOption = errors.New("invalid preclear option")

var (
	opFlagRe = regexp.MustCompile(`^-[A-Za-z]$`)
	sizeRe   = regexp.MustCompile(`^[0-9]+$`)
)

const (
	// OpVerify runs only the post-read verification.
	OpVerify = "-V"
	// OpZero is a pass-through op that still asks for confirmation.
	OpZero = "-z"
)

// Options selects the operation and its flags for one preclear launch.
// An empty Op is the full preclear cycle.
type Options struct {
	Op          string `json:"op,omitempty"`
	MailLevel   int    `json:"mail_level,omitempty"`
	NotifyLevel int    `json:"notify_level,omitempty"`
	Passes      int    `json:"passes,omitempty"`
	ReadSize    string `json:"read_size,omitempty"`
	WriteSize   string `json:"write_size,omitempty"`
	SkipPreRead bool   `json:"skip_pre_read,omitempty"`
	FastRead    bool   `json:"fast_read,omitempty"`
}

// IsFullRun reports whether the options select the full preclear cycle.
func (o Options) IsFullRun() bool {
	return o.Op == "" || o.Op == "0"
}

// NeedsConfirmation reports whether the script will ask for an interactive
// confirmation before proceeding.
func (o Options) NeedsConfirmation() bool {
	return o.IsFullRun() || o.Op == OpVerify || o.Op == OpZero
}

// WritesPlaceholder reports whether a "Starting..." status record is written
// at launch. Pass-through ops report nothing.
func (o Options) WritesPlaceholder() bool {
	return o.IsFullRun() || o.Op == OpVerify
}

// Validate rejects values outside the flag grammar of the script.
func (o Options) Validate() error {
	if !o.IsFullRun() && !opFlagRe.MatchString(o.Op) {
		return fmt.Errorf("%w: op %q", ErrInvalidOption, o.Op)
	}
	for name, v := range map[string]int{"-M": o.MailLevel, "-o": o.NotifyLevel, "-c": o.Passes} {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidOption, name)
		}
	}
	for name, v := range map[string]string{"-r": o.ReadSize, "-w": o.WriteSize} {
		if v != "" && !sizeRe.MatchString(v) {
			return fmt.Errorf("%w: %s %q", ErrInvalidOption, name, v)
		}
	}
	return nil
}

// Command builds the script command line for device. noprompt adds -J for
// script builds that support unattended runs.
func (o Options) Command(script, device string, noprompt bool) string {
	args := []string{script}

	switch {
	case o.IsFullRun():
		args = append(args, o.notifyArgs()...)
		if o.Passes > 0 {
			args = append(args, "-c", strconv.Itoa(o.Passes))
		}
		if o.ReadSize != "" && o.ReadSize != "0" {
			args = append(args, "-r", o.ReadSize)
		}
		if o.WriteSize != "" && o.WriteSize != "0" {
			args = append(args, "-w", o.WriteSize)
		}
		if o.SkipPreRead {
			args = append(args, "-W")
		}
		if o.FastRead {
			args = append(args, "-f")
		}
	case o.Op == OpVerify:
		args = append(args, OpVerify)
		if o.FastRead {
			args = append(args, "-f")
		}
		args = append(args, o.notifyArgs()...)
	default:
		args = append(args, o.Op)
	}

	if noprompt {
		args = append(args, "-J")
	}
	args = append(args, "/dev/"+device)

	return strings.Join(args, " ")
}

// notifyArgs returns -M and -o. Mail is only meaningful with notifications on.
func (o Options) notifyArgs() []string {
	var args []string
	if o.MailLevel > 0 && o.NotifyLevel > 0 {
		args = append(args, "-M", strconv.Itoa(o.MailLevel))
	}
	if o.NotifyLevel > 0 {
		args = append(args, "-o", strconv.Itoa(o.NotifyLevel))
	}
	return args
}

// OptionsFromForm reads the start_preclear form fields. Numeric fields that do
// not parse are treated as unset; checkbox fields are on when set to "on".
func OptionsFromForm(form url.Values) (Options, error) {
	opts := Options{
		Op:          strings.TrimSpace(form.Get("op")),
		MailLevel:   formInt(form, "-M"),
		NotifyLevel: formInt(form, "-o"),
		Passes:      formInt(form, "-c"),
		ReadSize:    strings.TrimSpace(form.Get("-r")),
		WriteSize:   strings.TrimSpace(form.Get("-w")),
		SkipPreRead: form.Get("-W") == "on",
		FastRead:    form.Get("-f") == "on",
	}
	if opts.Op == "0" {
		opts.Op = ""
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func formInt(form url.Values, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(form.Get(key)))
	if err != nil {
		return 0
	}
	return v
}
