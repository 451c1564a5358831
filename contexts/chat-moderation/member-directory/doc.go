// Package memberdirectory resolves chat and user identities for the
// moderation bot. It keeps a local mirror of transport profiles, refreshing
// entries past their staleness budget, and answers participant and admin
// checks through a small TTL cache so repeated permission lookups do not
// hammer the transport.
package memberdirectory
