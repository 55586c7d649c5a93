// Package browser creates isolated Playwright browser sessions for account automation.
//
// Each call to Factory.CreateSession launches a dedicated Chromium process, opens one
// browsing context and one page inside it, and returns them as a Session. Sessions are
// never shared: the caller owns the returned Session and must Close it, which releases
// the page, then the context, then the browser process.
//
// # Executable Resolution
//
// The Chromium executable is resolved once per Factory and cached. Resolution checks,
// in order:
//
//  1. An explicit path set with SetExecutablePath
//  2. The CHROME_PATH environment variable
//  3. Well-known install locations for the current OS
//  4. Browser binaries on PATH
//
// Calling SetExecutablePath replaces the cached value. A failed resolution or a
// rejected launch is reported as a *LaunchError carrying the attempted path.
//
// The factory never retries a launch; retry policy belongs to the caller.
package browser
