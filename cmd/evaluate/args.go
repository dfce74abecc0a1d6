package main

import (
	"strings"

	"github.com/spf13/pflag"

	"outcomeeval/internal/config"
)

// aliases maps the multi-letter short options of the run command to their
// long names.
var aliases = map[string]string{
	"fs":  "feature_selectors",
	"nfd": "no_features_dropped",
	"nfs": "no_feature_selection",
	"cv":  "cv_splits",
	"sh":  "shap_eval",
	"dr":  "drop_missing_value",
	"mt":  "missing_threshold",
	"ct":  "correlation_threshold",
	"ex":  "data_exploration",
}

var shorthands = map[string]string{"f": "feature_set", "i": "imputer", "n": "normaliser"}

// optionalValue flags take their value only when the next argument is one of
// the listed choices; otherwise their NoOptDefVal applies.
var optionalValue = map[string][]string{
	"imputer":    config.Imputers,
	"normaliser": config.Normalisers,
}

// multiValue flags consume every following argument that is a valid choice.
// Without any, the flag is an explicit empty list.
var multiValue = map[string][]string{
	"feature_set":       config.FeatureSets,
	"feature_selectors": config.FeatureSelectors,
}

// boolValue flags also accept a separate true/false argument.
var boolValue = map[string]bool{"shap_eval": true}

func aliasNormalizer(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if long, ok := aliases[name]; ok {
		return pflag.NormalizedName(long)
	}
	return pflag.NormalizedName(name)
}

// normalizeArgs rewrites argument lists written for the single-dash style
// (-fs missing collinear, -fs, -i knn, -f pre intra, -sh True) into the form
// pflag parses (--feature_selectors=missing,collinear, --feature_selectors=,
// -i=knn, --feature_set=pre,intra, --sh=True). List flags always use the
// long form since pflag reads "-f=" as the value "=".
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for k := 0; k < len(args); k++ {
		a := args[k]
		if a == "--" {
			out = append(out, args[k:]...)
			break
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") {
			if _, ok := aliases[a[1:]]; ok {
				a = "-" + a
			}
		}
		name := flagName(a)
		if choices, ok := optionalValue[name]; ok && k+1 < len(args) && oneOf(args[k+1], choices) {
			a += "=" + args[k+1]
			k++
		} else if choices, ok := multiValue[name]; ok {
			var vals []string
			for k+1 < len(args) && oneOf(args[k+1], choices) {
				vals = append(vals, args[k+1])
				k++
			}
			a = "--" + name + "=" + strings.Join(vals, ",")
		} else if boolValue[name] && k+1 < len(args) && isBool(args[k+1]) {
			a += "=" + args[k+1]
			k++
		}
		out = append(out, a)
	}
	return out
}

// flagName returns the long name of a flag argument without a value, or ""
// for positional arguments and flags written with "=".
func flagName(a string) string {
	if !strings.HasPrefix(a, "-") || strings.Contains(a, "=") {
		return ""
	}
	if strings.HasPrefix(a, "--") {
		n := a[2:]
		if long, ok := aliases[n]; ok {
			return long
		}
		return n
	}
	return shorthands[a[1:]]
}

func isBool(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

func oneOf(s string, opts []string) bool {
	for _, o := range opts {
		if s == o {
			return true
		}
	}
	return false
}
