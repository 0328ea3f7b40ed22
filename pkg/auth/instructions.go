package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieGuide writes step-by-step instructions for copying a site's
// Cookie header out of a browser
func ShowCookieGuide(w io.Writer, host string) {
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "🍪 COOKIE SETUP FOR %s\n", strings.ToUpper(host))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Some sites only show their pages to signed-in visitors.")
	fmt.Fprintln(w, "chaincrawl can send your browser's cookies with every request to this host.")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "🌐 STEP 1: Open https://%s in your browser and sign in\n", host)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔧 STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   • Safari: enable the Develop menu in Settings, then Cmd+Option+I")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📡 STEP 3: Network tab → reload the page → click the first request")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔑 STEP 4: Under 'Request Headers' copy the whole value of 'Cookie:'")
	fmt.Fprintln(w, "   It looks like: name1=value1; name2=value2")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💡 TIPS:")
	fmt.Fprintln(w, "   • Paste the value without the 'Cookie:' prefix")
	fmt.Fprintln(w, "   • Cookies expire, run 'chaincrawl auth set' again when pages stop loading")
	fmt.Fprintf(w, "   • Or export %s%s for a single run\n", cookieEnvPrefix, EnvKey(host))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  These cookies act as your login. Never share them.")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
