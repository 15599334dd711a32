package recipes

import (
	"fmt"
	"sort"

	"wpdeploy/pkg/contrib/clearpaths"
	"wpdeploy/pkg/contrib/cliq"
	"wpdeploy/pkg/contrib/filetransfer"
	"wpdeploy/pkg/contrib/gittag"
	"wpdeploy/pkg/contrib/hardening"
	"wpdeploy/pkg/contrib/mysql"
	"wpdeploy/pkg/contrib/pause"
	"wpdeploy/pkg/contrib/staging"
	"wpdeploy/pkg/contrib/wpcli"
	"wpdeploy/pkg/recipe"
)

var contribs = map[string]func(*recipe.Registry){
	"clearpaths":   clearpaths.Register,
	"cliq":         cliq.Register,
	"filetransfer": filetransfer.Register,
	"gittag":       gittag.Register,
	"hardening":    hardening.Register,
	"mysql":        mysql.Register,
	"pause":        pause.Register,
	"staging":      staging.Register,
	"wpcli":        wpcli.Register,
}

// ContribNames lists the contrib packages that can be enabled on top of a
// recipe.
func ContribNames() []string {
	names := make([]string, 0, len(contribs))
	for name := range contribs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadContrib registers the tasks of the named contrib package.
func LoadContrib(name string, r *recipe.Registry) error {
	fn, ok := contribs[name]
	if !ok {
		return fmt.Errorf("%w: contrib %q (available: %v)", ErrUnknownRecipe, name, ContribNames())
	}
	fn(r)
	return nil
}
