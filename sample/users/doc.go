/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package users is a worked example: a User entity, its typed repository
// with derived queries, and the demo run used by cmd/userdemo.
package users
