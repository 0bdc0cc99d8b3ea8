package runner

import (
	"github.com/projectdiscovery/gologger"

	"github.com/marcuoli/go-reachscan/pkg/reachscan"
)

const banner = `
                       __
   ________  ____ ______/ /_  ______________ _____
  / ___/ _ \/ __ '/ ___/ __ \/ ___/ ___/ __ '/ __ \
 / /  /  __/ /_/ / /__/ / / (__  ) /__/ /_/ / / / /
/_/   \___/\__,_/\___/_/ /_/____/\___/\__,_/_/ /_/
`

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s\n", au.Bold(au.Cyan(banner)))
	gologger.Print().Msgf("\t\t%s\n\n", au.Faint(reachscan.VersionInfo()))
}
