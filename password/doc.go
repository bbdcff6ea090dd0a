// Package password hashes and verifies principal secrets.
//
// # Formats
//
// New hashes are argon2id PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Records imported from the original user table hold bcrypt hashes of the
// md5 hex digest of the password. [Bcrypt] verifies those and [Chain]
// dispatches between the two by prefix, reporting legacy hashes as needing
// an upgrade.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// reuse) is enforced by the Engine. It never stores secrets and does not
// import any other wmsauth package.
package password
