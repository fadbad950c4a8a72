package blocker

import (
	"context"
	"fmt"

	"github.com/avct/uasurfer"
)

// Actor identifies who requested a state change. It is recorded on history
// events.
type Actor struct {
	ClientIP  string
	UserAgent string
	// Client is a short description derived from UserAgent, e.g. "BrowserChrome 120.0.0 on OSLinux".
	Client string
}

type actorKey struct{}

func NewActor(clientIP, rawUserAgent string) Actor {
	actor := Actor{ClientIP: clientIP, UserAgent: rawUserAgent}
	if rawUserAgent == "" {
		return actor
	}

	ua := uasurfer.Parse(rawUserAgent)
	if ua.Browser.Name == uasurfer.BrowserUnknown && ua.OS.Name == uasurfer.OSUnknown {
		return actor
	}

	actor.Client = fmt.Sprintf("%s %s on %s",
		ua.Browser.Name.String(),
		versionString(ua.Browser.Version),
		ua.OS.Name.String(),
	)
	return actor
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

func versionString(v uasurfer.Version) string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
