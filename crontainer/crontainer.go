// Package crontainer is the core of the crontainer entrypoint. It picks one of
// three modes at startup and runs it to completion.
//
// Modes
//
// In init mode, every script found in the script directories is run once, in
// order, through the run-script command. The first failing script stops the
// run and its exit code becomes the container's exit code.
//
// In cron mode, a crontab is generated for the same scripts, or copied from
// the custom schedule file, and crond is started in the foreground. Each job
// invokes run-script and writes into the entrypoint's own stdout, so job
// output ends up in the container log.
//
// In command mode, the entrypoint replaces itself with the given command.
//
// Identity
//
// PUID and PGID select the account scripts and commands run as. Both 0 means
// root, in which case nothing is created and no privilege switch is done.
// Otherwise, the group and user are looked up by ID and created with a fixed
// name if they don't exist, and every command is prefixed with su-exec.
//
// The directory tree of a container may look like this:
//
//    - /
//        - scripts/
//            - 10-fetch.sh
//            - 20-build.sh
//        - init/
//            - setup.sh
//        - cron-scripts/
//        - cron-schedule
//        - etc/
//            - crontabs/
//                - root
//
package crontainer
