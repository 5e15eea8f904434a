// Package credential hashes secrets with bcrypt and checks the confirmation
// token an operator supplies when disabling 2FA.
package credential
