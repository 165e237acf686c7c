package posix

import (
	co "github.com/tinykern/proccore/go/kernel/common"
)

func (k *Kernel) Getuid() int  { return k.current().Creds.Ruid }
func (k *Kernel) Geteuid() int { return k.current().Creds.Euid }
func (k *Kernel) Getgid() int  { return k.current().Creds.Rgid }
func (k *Kernel) Getegid() int { return k.current().Creds.Egid }

// Setuid sets both ids for root. Anyone else may only set the effective id
// back to the real one.
func (k *Kernel) Setuid(uid int) int64 {
	c := &k.current().Creds
	if uid < 0 {
		return co.EINVAL.Ret()
	}
	if c.Root() {
		c.Ruid, c.Euid = uid, uid
	} else if uid == c.Ruid {
		c.Euid = uid
	} else {
		return co.EPERM.Ret()
	}
	return 0
}

func (k *Kernel) Setgid(gid int) int64 {
	c := &k.current().Creds
	if gid < 0 {
		return co.EINVAL.Ret()
	}
	if c.Root() {
		c.Rgid, c.Egid = gid, gid
	} else if gid == c.Rgid {
		c.Egid = gid
	} else {
		return co.EPERM.Ret()
	}
	return 0
}
