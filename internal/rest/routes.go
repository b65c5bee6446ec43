package rest

import (
	"fmt"
	"net/url"
	"strings"
)

// route is a templated API path such as /channels/{channelId}/messages.
// The template doubles as the metrics and tracing label.
type route struct {
	method   string
	template string
}

// compile substitutes args into the placeholders in order, path-escaping each.
func (r route) compile(args ...any) string {
	var b strings.Builder
	rest := r.template
	for _, arg := range args {
		open := strings.IndexByte(rest, '{')
		end := strings.IndexByte(rest, '}')
		if open < 0 || end < open {
			panic(fmt.Sprintf("rest: too many arguments for route %s", r.template))
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(fmt.Sprint(arg)))
		rest = rest[end+1:]
	}
	if strings.IndexByte(rest, '{') >= 0 {
		panic(fmt.Sprintf("rest: missing arguments for route %s", r.template))
	}
	b.WriteString(rest)
	return b.String()
}

var (
	routePutMemberRole    = route{"PUT", "/members/{userId}/roles/{roleId}"}
	routeDeleteMemberRole = route{"DELETE", "/members/{userId}/roles/{roleId}"}

	routePutGroupMember    = route{"PUT", "/groups/{groupId}/members/{userId}"}
	routeDeleteGroupMember = route{"DELETE", "/groups/{groupId}/members/{userId}"}

	routePostChannelForum = route{"POST", "/channels/{channelId}/forum"}

	routePostChannelMessage   = route{"POST", "/channels/{channelId}/messages"}
	routeGetChannelMessages   = route{"GET", "/channels/{channelId}/messages"}
	routeGetChannelMessage    = route{"GET", "/channels/{channelId}/messages/{messageId}"}
	routePutChannelMessage    = route{"PUT", "/channels/{channelId}/messages/{messageId}"}
	routeDeleteChannelMessage = route{"DELETE", "/channels/{channelId}/messages/{messageId}"}

	routePutContentReaction = route{"PUT", "/channels/{channelId}/content/{contentId}/emotes/{emoteId}"}

	routePostChannelList = route{"POST", "/channels/{channelId}/list"}

	routePostMemberXP = route{"POST", "/members/{userId}/xp"}
	routePostRoleXP   = route{"POST", "/roles/{roleId}/xp"}
)
