// Package authsession mirrors an external identity provider's session into
// process-local, observable state and forwards sign-in, sign-up and sign-out
// actions to that provider.
//
// Provider lifecycle:
//   - NewProvider wires an IdentityProvider (the service of record for
//     credentials and tokens) and a ProfileLookup (the source of the role used
//     to derive IsAdmin). Construct it once at application start and pass it
//     explicitly, or attach it to request contexts with WithProvider.
//   - Mount registers the change subscription first and only then fetches the
//     current session, so no event fired during the initial fetch is lost.
//     Both producers feed the same apply path; the last applied write wins.
//   - Unmount releases the subscription and cancels in-flight profile lookups.
//
// Admin resolution:
//   - Every user change starts a profile lookup tagged with a generation.
//     Results from superseded generations are dropped, and any lookup error
//     leaves IsAdmin false (fail-closed).
//
// Actions:
//   - SignIn and SignUp report failures as returned errors and never touch the
//     local state directly; the provider's change events are the source of
//     truth. SignOut swallows provider errors and always leaves the state
//     signed out.
package authsession
