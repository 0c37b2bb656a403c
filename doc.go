// Package auth manages organizer identities: password accounts, social
// provider links, session tokens and account deletion.
//
// Credentials:
//   - An Organizer always keeps at least one usable credential, a password
//     hash or a linked provider identity. The store re-checks this inside the
//     transaction that removes a provider link, so concurrent unlinks cannot
//     race the account down to zero credentials.
//   - A (provider, provider_id) pair belongs to at most one organizer. The
//     database unique constraint is the authoritative guard; violations are
//     reported as ErrProviderLinkedElsewhere.
//
// Sessions:
//   - Sessions are HS256 JWTs that carry the organizer id. Resolving a token
//     through Auther.OrganizerFromToken also confirms the organizer still
//     exists, so deleted accounts stop authenticating immediately.
//
// Social providers, link/unlink and the OAuth redirect flow live in the
// social package.
package auth
