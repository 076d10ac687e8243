/*
Package logging implements the application log setup and the access log
of the served requests.

# Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import logrus directly:

	import log "github.com/sirupsen/logrus"

	func doSomething() {
		log.Errorf("nothing to do")
	}

During startup, Init can redirect the log output from the default
/dev/stderr to another writer, set the level, switch to JSON output, and
set a common prefix for every entry. Setting the prefix is useful when
the access log and the application log share the same output.

# Access Log

The access log prints HTTP access information in the Apache combined log
format, extended with the request duration, the requested host, the name
of the matched route and the request ID. It can also be printed as JSON.
The handler returned by NewHandler logs every request served by the
wrapped handler. The wrapped handler can complete the entry with the
route and the request ID, see AccessEntryFrom.
*/
package logging
